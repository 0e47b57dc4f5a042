package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maruel/ksid"

	"github.com/noteleaf/noteleaf/internal/models"
)

func insertPayload(ctx context.Context, tx *sql.Tx, nodeID ksid.ID, p *models.Payload) error {
	var err error
	switch p.Kind {
	case models.KindNote:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO note_payloads (node_id, content) VALUES (?, ?)
		`, nodeID.String(), p.Note.Content)
	case models.KindHTML:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO html_payloads (node_id, content) VALUES (?, ?)
		`, nodeID.String(), p.HTML.Content)
	case models.KindCode:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO code_payloads (node_id, content, language) VALUES (?, ?, ?)
		`, nodeID.String(), p.Code.Content, p.Code.Language)
	case models.KindExternalLink:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO link_payloads (node_id, url, description) VALUES (?, ?, ?)
		`, nodeID.String(), p.Link.URL, p.Link.Description)
	case models.KindFolderSettings:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO folder_settings_payloads (node_id, view, sort_mode) VALUES (?, ?, ?)
		`, nodeID.String(), p.FolderSettings.View, p.FolderSettings.SortMode)
	case models.KindChat, models.KindVisualization, models.KindTabularData,
		models.KindGoal, models.KindWorkflow:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO doc_payloads (node_id, body) VALUES (?, ?)
		`, nodeID.String(), p.Doc.Body)
	case models.KindFile:
		f := p.File
		_, err = tx.ExecContext(ctx, `
			INSERT INTO file_payloads (node_id, file_name, mime_type, size, checksum,
				storage_key, status, error_message, width, height, duration,
				thumbnail_key, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, nodeID.String(), f.FileName, f.MimeType, f.Size, f.Checksum,
			f.StorageKey, string(f.Status), f.ErrorMessage, f.Width, f.Height,
			f.Duration, f.ThumbnailKey, f.Created, f.Modified)
	default:
		return fmt.Errorf("unknown payload kind %q", p.Kind)
	}
	if err != nil {
		return fmt.Errorf("inserting %s payload: %w", p.Kind, err)
	}
	return nil
}

// GetPayload loads the payload extension for a node. Folders have no
// extension row and return a bare folder variant.
func (s *Store) GetPayload(ctx context.Context, n *models.Node) (*models.Payload, error) {
	p := &models.Payload{Kind: n.Kind}
	id := n.ID.String()
	var err error
	switch n.Kind {
	case models.KindFolder:
		return p, nil
	case models.KindNote:
		p.Note = &models.NotePayload{NodeID: n.ID}
		err = s.db.QueryRowContext(ctx, `
			SELECT content FROM note_payloads WHERE node_id = ?
		`, id).Scan(&p.Note.Content)
	case models.KindHTML:
		p.HTML = &models.HTMLPayload{NodeID: n.ID}
		err = s.db.QueryRowContext(ctx, `
			SELECT content FROM html_payloads WHERE node_id = ?
		`, id).Scan(&p.HTML.Content)
	case models.KindCode:
		p.Code = &models.CodePayload{NodeID: n.ID}
		err = s.db.QueryRowContext(ctx, `
			SELECT content, language FROM code_payloads WHERE node_id = ?
		`, id).Scan(&p.Code.Content, &p.Code.Language)
	case models.KindExternalLink:
		p.Link = &models.LinkPayload{NodeID: n.ID}
		err = s.db.QueryRowContext(ctx, `
			SELECT url, description FROM link_payloads WHERE node_id = ?
		`, id).Scan(&p.Link.URL, &p.Link.Description)
	case models.KindFolderSettings:
		p.FolderSettings = &models.FolderSettingsPayload{NodeID: n.ID}
		err = s.db.QueryRowContext(ctx, `
			SELECT view, sort_mode FROM folder_settings_payloads WHERE node_id = ?
		`, id).Scan(&p.FolderSettings.View, &p.FolderSettings.SortMode)
	case models.KindChat, models.KindVisualization, models.KindTabularData,
		models.KindGoal, models.KindWorkflow:
		p.Doc = &models.DocPayload{NodeID: n.ID}
		err = s.db.QueryRowContext(ctx, `
			SELECT body FROM doc_payloads WHERE node_id = ?
		`, id).Scan(&p.Doc.Body)
	case models.KindFile:
		f := &models.FilePayload{NodeID: n.ID}
		var status string
		err = s.db.QueryRowContext(ctx, `
			SELECT file_name, mime_type, size, checksum, storage_key, status,
				error_message, width, height, duration, thumbnail_key,
				created_at, updated_at
			FROM file_payloads WHERE node_id = ?
		`, id).Scan(&f.FileName, &f.MimeType, &f.Size, &f.Checksum, &f.StorageKey,
			&status, &f.ErrorMessage, &f.Width, &f.Height, &f.Duration,
			&f.ThumbnailKey, &f.Created, &f.Modified)
		f.Status = models.UploadStatus(status)
		p.File = f
	default:
		return nil, fmt.Errorf("unknown payload kind %q", n.Kind)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying %s payload: %w", n.Kind, err)
	}
	return p, nil
}

// FindReadyFileByChecksum looks for a ready file payload with the same
// checksum and size belonging to a live node of the given owner. Returns
// ErrNotFound when no match exists.
func (s *Store) FindReadyFileByChecksum(ctx context.Context, ownerID ksid.ID, checksum string, size int64) (*models.FilePayload, error) {
	f := &models.FilePayload{}
	var nodeID, status string
	err := s.db.QueryRowContext(ctx, `
		SELECT f.node_id, f.file_name, f.mime_type, f.size, f.checksum,
			f.storage_key, f.status, f.error_message, f.width, f.height,
			f.duration, f.thumbnail_key, f.created_at, f.updated_at
		FROM file_payloads f
		JOIN nodes n ON n.id = f.node_id
		WHERE f.checksum = ? AND f.size = ? AND f.status = 'ready'
			AND n.owner_id = ? AND n.deleted_at IS NULL
		LIMIT 1
	`, checksum, size, ownerID.String()).Scan(&nodeID, &f.FileName, &f.MimeType,
		&f.Size, &f.Checksum, &f.StorageKey, &status, &f.ErrorMessage,
		&f.Width, &f.Height, &f.Duration, &f.ThumbnailKey, &f.Created, &f.Modified)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying file by checksum: %w", err)
	}
	if f.NodeID, err = ksid.Parse(nodeID); err != nil {
		return nil, fmt.Errorf("parsing node id: %w", err)
	}
	f.Status = models.UploadStatus(status)
	return f, nil
}

// UpdateFileStatus transitions a file payload's upload state.
func (s *Store) UpdateFileStatus(ctx context.Context, nodeID ksid.ID, status models.UploadStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE file_payloads SET status = ?, error_message = ?, updated_at = ?
		WHERE node_id = ?
	`, string(status), errMsg, time.Now().UTC(), nodeID.String())
	if err != nil {
		return fmt.Errorf("updating file status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFileMetadata stores extracted media attributes on a file payload.
func (s *Store) UpdateFileMetadata(ctx context.Context, nodeID ksid.ID, width, height int, duration float64, thumbnailKey string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE file_payloads SET width = ?, height = ?, duration = ?,
			thumbnail_key = ?, updated_at = ?
		WHERE node_id = ?
	`, width, height, duration, thumbnailKey, time.Now().UTC(), nodeID.String())
	if err != nil {
		return fmt.Errorf("updating file metadata: %w", err)
	}
	return nil
}

// NodeWithPayload pairs a node with its payload for bulk insertion.
type NodeWithPayload struct {
	Node    *models.Node
	Payload *models.Payload
}

// CreateSubtree inserts a set of copied nodes and their payloads as one
// atomic unit. Entries must be ordered parents before children so foreign
// keys resolve.
func (s *Store) CreateSubtree(ctx context.Context, entries []NodeWithPayload) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, e := range entries {
		if err := insertNode(ctx, tx, e.Node); err != nil {
			return err
		}
		if e.Payload != nil && e.Payload.Kind != models.KindFolder {
			if err := insertPayload(ctx, tx, e.Node.ID, e.Payload); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
