package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maruel/ksid"

	"github.com/noteleaf/noteleaf/internal/models"
)

const nodeColumns = `id, owner_id, title, slug, parent_id, position, path, kind,
	category_id, icon, color, is_published, deleted_at, created_at, updated_at`

// CreateNodeWithPayload persists a node and its payload extension as one
// atomic unit. A nil or folder payload inserts only the node row.
func (s *Store) CreateNodeWithPayload(ctx context.Context, n *models.Node, p *models.Payload) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertNode(ctx, tx, n); err != nil {
		return err
	}
	if p != nil && p.Kind != models.KindFolder {
		if err := insertPayload(ctx, tx, n.ID, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertNode(ctx context.Context, tx *sql.Tx, n *models.Node) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (id, owner_id, title, slug, parent_id, position, path, kind,
			category_id, icon, color, is_published, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID.String(), n.OwnerID.String(), n.Title, n.Slug, nullID(n.ParentID),
		n.Position, n.Path, string(n.Kind), nullID(n.CategoryID), n.Icon, n.Color,
		n.IsPublished, nullTime(n.DeletedAt), n.Created, n.Modified)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("inserting node: %w", err)
	}
	return nil
}

// GetNode retrieves a live (non-tombstoned) node by ID.
func (s *Store) GetNode(ctx context.Context, id ksid.ID) (*models.Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes WHERE id = ? AND deleted_at IS NULL
	`, id.String())
	return scanNode(row)
}

// querier is the read surface shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ListSiblings returns the live sibling set under parentID for an owner,
// in canonical order: position ascending, title as tie-break. A zero
// parentID selects the owner's root nodes.
func (s *Store) ListSiblings(ctx context.Context, ownerID, parentID ksid.ID) ([]*models.Node, error) {
	return listSiblings(ctx, s.db, ownerID, parentID)
}

func listSiblings(ctx context.Context, q querier, ownerID, parentID ksid.ID) ([]*models.Node, error) {
	query := `
		SELECT ` + nodeColumns + `
		FROM nodes
		WHERE owner_id = ? AND deleted_at IS NULL AND `
	args := []any{ownerID.String()}
	if parentID.IsZero() {
		query += `parent_id IS NULL`
	} else {
		query += `parent_id = ?`
		args = append(args, parentID.String())
	}
	query += ` ORDER BY position, title`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying siblings: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// ListChildren returns the live direct children of a node in canonical order.
func (s *Store) ListChildren(ctx context.Context, parentID ksid.ID) ([]*models.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE parent_id = ? AND deleted_at IS NULL
		ORDER BY position, title
	`, parentID.String())
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// ApplyMove re-parents movedID to newParentID, splices it into the
// destination sibling set at index (clamped to the valid range) and
// renumbers both touched sets 0..n-1, all inside a single transaction. The
// sibling sets are read within the same transaction, so concurrent moves
// into one parent serialize instead of committing overlapping positions.
// Returns the position the node landed on.
func (s *Store) ApplyMove(ctx context.Context, ownerID, movedID, oldParentID, newParentID ksid.ID, index int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	dest, err := listSiblings(ctx, tx, ownerID, newParentID)
	if err != nil {
		return 0, err
	}
	destIDs := make([]ksid.ID, 0, len(dest)+1)
	for _, sib := range dest {
		if sib.ID != movedID {
			destIDs = append(destIDs, sib.ID)
		}
	}
	if index < 0 {
		index = 0
	}
	if index > len(destIDs) {
		index = len(destIDs)
	}
	destIDs = append(destIDs[:index], append([]ksid.ID{movedID}, destIDs[index:]...)...)

	var oldIDs []ksid.ID
	if oldParentID != newParentID {
		old, err := listSiblings(ctx, tx, ownerID, oldParentID)
		if err != nil {
			return 0, err
		}
		for _, sib := range old {
			if sib.ID != movedID {
				oldIDs = append(oldIDs, sib.ID)
			}
		}
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE nodes SET parent_id = ?, updated_at = ? WHERE id = ?
	`, nullID(newParentID), now, movedID.String()); err != nil {
		return 0, fmt.Errorf("updating parent: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE nodes SET position = ? WHERE id = ?`)
	if err != nil {
		return 0, fmt.Errorf("preparing position update: %w", err)
	}
	defer stmt.Close()
	for _, set := range [][]ksid.ID{destIDs, oldIDs} {
		for i, id := range set {
			if _, err := stmt.ExecContext(ctx, i, id.String()); err != nil {
				return 0, fmt.Errorf("renumbering sibling %s: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return index, nil
}

// UpdatePath persists the materialized ancestry path of a node.
func (s *Store) UpdatePath(ctx context.Context, id ksid.ID, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE nodes SET path = ? WHERE id = ?`, path, id.String())
	if err != nil {
		return fmt.Errorf("updating path: %w", err)
	}
	return nil
}

// UpdateTitleAndSlug renames a node.
func (s *Store) UpdateTitleAndSlug(ctx context.Context, id ksid.ID, title, slug string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE nodes SET title = ?, slug = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, title, slug, time.Now().UTC(), id.String())
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("renaming node: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteNodes tombstones the given nodes in one transaction.
func (s *Store) SoftDeleteNodes(ctx context.Context, ids []ksid.ID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE nodes SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`)
	if err != nil {
		return fmt.Errorf("preparing tombstone update: %w", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, at, at, id.String()); err != nil {
			return fmt.Errorf("tombstoning node %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SlugExists reports whether the owner already has a node (live or
// tombstoned) with the given slug. Tombstoned nodes still hold their slug
// because the UNIQUE constraint covers them.
func (s *Store) SlugExists(ctx context.Context, ownerID ksid.ID, slug string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM nodes WHERE owner_id = ? AND slug = ?
	`, ownerID.String(), slug).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking slug: %w", err)
	}
	return count > 0, nil
}

// ==================== Helpers ====================

func nullID(id ksid.ID) any {
	if id.IsZero() {
		return nil
	}
	return id.String()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*models.Node, error) {
	var n models.Node
	var id, ownerID, kind string
	var parentID, categoryID sql.NullString
	var deletedAt sql.NullTime
	if err := row.Scan(&id, &ownerID, &n.Title, &n.Slug, &parentID, &n.Position,
		&n.Path, &kind, &categoryID, &n.Icon, &n.Color, &n.IsPublished,
		&deletedAt, &n.Created, &n.Modified); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning node: %w", err)
	}

	var err error
	if n.ID, err = ksid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing node id: %w", err)
	}
	if n.OwnerID, err = ksid.Parse(ownerID); err != nil {
		return nil, fmt.Errorf("parsing owner id: %w", err)
	}
	if parentID.Valid {
		if n.ParentID, err = ksid.Parse(parentID.String); err != nil {
			return nil, fmt.Errorf("parsing parent id: %w", err)
		}
	}
	if categoryID.Valid {
		if n.CategoryID, err = ksid.Parse(categoryID.String); err != nil {
			return nil, fmt.Errorf("parsing category id: %w", err)
		}
	}
	if deletedAt.Valid {
		n.DeletedAt = deletedAt.Time
	}
	n.Kind = models.PayloadKind(kind)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*models.Node, error) {
	var nodes []*models.Node //nolint:prealloc // size unknown from query
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return nodes, nil
}
