// Package content implements the tree semantics of the store: node
// lifecycle, sibling ordering, materialized ancestry paths, subtree
// duplication and the upload state machine. All tree mutations go through
// this package; the storage layer only persists what it is handed.
package content

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maruel/ksid"

	"github.com/noteleaf/noteleaf/internal/blob"
	"github.com/noteleaf/noteleaf/internal/models"
	"github.com/noteleaf/noteleaf/internal/storage/sqlite"
)

// maxTreeDepth bounds every ancestry walk. A tree deeper than this is
// corrupt or adversarial; walks that hit the bound fail loudly instead of
// looping.
const maxTreeDepth = 100

// slugRetries bounds how many times a create retries after losing a slug
// uniqueness race before giving up with a conflict.
const slugRetries = 3

// Service owns all content tree operations for every owner.
type Service struct {
	store     *sqlite.Store
	blobs     blob.Store
	extractor blob.Extractor
	logger    *slog.Logger

	maxUploadSize int64
	presignTTL    time.Duration
}

// Options configures a Service.
type Options struct {
	Store     *sqlite.Store
	Blobs     blob.Store
	Extractor blob.Extractor
	Logger    *slog.Logger

	// MaxUploadSize is the declared-size ceiling for uploads, in bytes.
	MaxUploadSize int64
	// PresignTTL is how long a minted upload URL stays valid.
	PresignTTL time.Duration
}

// NewService builds a Service. Extractor defaults to a no-op.
func NewService(opts Options) *Service {
	if opts.Extractor == nil {
		opts.Extractor = blob.NopExtractor{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:         opts.Store,
		blobs:         opts.Blobs,
		extractor:     opts.Extractor,
		logger:        opts.Logger,
		maxUploadSize: opts.MaxUploadSize,
		presignTTL:    opts.PresignTTL,
	}
}

// CreateNodeRequest describes a node to create. A nil Payload creates a
// folder.
type CreateNodeRequest struct {
	OwnerID  ksid.ID
	ParentID ksid.ID
	Title    string
	Payload  *models.Payload

	CategoryID ksid.ID
	Icon       string
	Color      string
}

// CreateNode creates a node under the given parent, appended at the end of
// the sibling set.
func (s *Service) CreateNode(ctx context.Context, req CreateNodeRequest) (*models.Node, error) {
	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	kind, err := resolvePayload(req.Payload)
	if err != nil {
		return nil, err
	}
	parent, err := s.resolveParent(ctx, req.OwnerID, req.ParentID)
	if err != nil {
		return nil, err
	}

	siblings, err := s.store.ListSiblings(ctx, req.OwnerID, req.ParentID)
	if err != nil {
		return nil, models.InternalWithError("listing siblings", err)
	}

	now := time.Now().UTC()
	n := &models.Node{
		ID:         ksid.NewID(),
		OwnerID:    req.OwnerID,
		Title:      title,
		ParentID:   req.ParentID,
		Position:   len(siblings),
		Kind:       kind,
		CategoryID: req.CategoryID,
		Icon:       req.Icon,
		Color:      req.Color,
		Created:    now,
		Modified:   now,
	}
	if parent != nil {
		if err := s.checkDepth(parent); err != nil {
			return nil, err
		}
		n.Path = parent.ChildPath()
	}

	if err := s.insertWithSlug(ctx, n, req.Payload); err != nil {
		return nil, err
	}
	return n, nil
}

// insertWithSlug allocates a slug for n and inserts it, retrying with
// fallback slugs when another writer wins the uniqueness race.
func (s *Service) insertWithSlug(ctx context.Context, n *models.Node, p *models.Payload) error {
	slug, err := s.allocateSlug(ctx, n.OwnerID, n.Title)
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		n.Slug = slug
		err = s.store.CreateNodeWithPayload(ctx, n, p)
		if err == nil {
			return nil
		}
		if !sqlite.IsUniqueViolation(err) {
			return models.InternalWithError("creating node", err)
		}
		if attempt >= slugRetries {
			return models.Conflict("could not allocate a unique slug").WithDetail("title", n.Title)
		}
		slug = fallbackSlug(Slugify(n.Title))
	}
}

// GetNode loads a node and its payload.
func (s *Service) GetNode(ctx context.Context, ownerID, id ksid.ID) (*models.Node, *models.Payload, error) {
	n, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.store.GetPayload(ctx, n)
	if err != nil {
		return nil, nil, models.InternalWithError("loading payload", err)
	}
	return n, p, nil
}

// ListChildren returns the live children of a node in display order. A zero
// id lists the owner's root nodes.
func (s *Service) ListChildren(ctx context.Context, ownerID, id ksid.ID) ([]*models.Node, error) {
	if !id.IsZero() {
		if _, err := s.loadOwned(ctx, ownerID, id); err != nil {
			return nil, err
		}
	}
	nodes, err := s.store.ListSiblings(ctx, ownerID, id)
	if err != nil {
		return nil, models.InternalWithError("listing children", err)
	}
	return nodes, nil
}

// RenameNode changes a node's title and reallocates its slug.
func (s *Service) RenameNode(ctx context.Context, ownerID, id ksid.ID, title string) (*models.Node, error) {
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}
	n, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if n.Title == title {
		return n, nil
	}

	slug, err := s.allocateSlug(ctx, ownerID, title)
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		err = s.store.UpdateTitleAndSlug(ctx, id, title, slug)
		if err == nil {
			break
		}
		if err == sqlite.ErrNotFound {
			return nil, models.NotFound("node")
		}
		if !sqlite.IsUniqueViolation(err) {
			return nil, models.InternalWithError("renaming node", err)
		}
		if attempt >= slugRetries {
			return nil, models.Conflict("could not allocate a unique slug").WithDetail("title", title)
		}
		slug = fallbackSlug(Slugify(title))
	}
	n.Title = title
	n.Slug = slug
	n.Modified = time.Now().UTC()
	return n, nil
}

// DeleteNode tombstones a node and its whole live subtree.
func (s *Service) DeleteNode(ctx context.Context, ownerID, id ksid.ID) error {
	n, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	ids, err := s.collectSubtree(ctx, n)
	if err != nil {
		return err
	}
	if err := s.store.SoftDeleteNodes(ctx, ids, time.Now().UTC()); err != nil {
		return models.InternalWithError("deleting subtree", err)
	}
	return nil
}

// ==================== Helpers ====================

// loadOwned fetches a live node and enforces ownership. A node belonging
// to another owner is forbidden, not hidden.
func (s *Service) loadOwned(ctx context.Context, ownerID, id ksid.ID) (*models.Node, error) {
	if id.IsZero() {
		return nil, models.BadRequest("node id is required")
	}
	n, err := s.store.GetNode(ctx, id)
	if err != nil {
		if err == sqlite.ErrNotFound {
			return nil, models.NotFound("node")
		}
		return nil, models.InternalWithError("loading node", err)
	}
	if n.OwnerID != ownerID {
		return nil, models.Forbidden("node belongs to a different owner")
	}
	return n, nil
}

// resolveParent validates a prospective parent. A zero id means root and
// returns nil. Non-folder parents are rejected.
func (s *Service) resolveParent(ctx context.Context, ownerID, parentID ksid.ID) (*models.Node, error) {
	if parentID.IsZero() {
		return nil, nil
	}
	parent, err := s.loadOwned(ctx, ownerID, parentID)
	if err != nil {
		if apiErr, ok := err.(*models.APIError); ok && apiErr.Code() == models.ErrorCodeNotFound {
			return nil, models.NotFound("parent")
		}
		return nil, err
	}
	if !parent.IsFolder() {
		return nil, models.BadRequest("parent must be a folder").WithDetail("parent_id", parentID.String())
	}
	return parent, nil
}

// checkDepth rejects placements that would put a node at or past the
// maximum tree depth.
func (s *Service) checkDepth(parent *models.Node) error {
	depth := 1
	if parent.Path != "" {
		depth += strings.Count(parent.Path, "/") + 1
	}
	if depth >= maxTreeDepth {
		return models.TreeDepthExceeded()
	}
	return nil
}

// collectSubtree gathers the IDs of n and all its live descendants,
// parents before children.
func (s *Service) collectSubtree(ctx context.Context, n *models.Node) ([]ksid.ID, error) {
	type item struct {
		id    ksid.ID
		depth int
	}
	ids := []ksid.ID{n.ID}
	queue := []item{{n.ID, 0}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.depth >= maxTreeDepth {
			return nil, models.TreeDepthExceeded()
		}
		children, err := s.store.ListChildren(ctx, it.id)
		if err != nil {
			return nil, models.InternalWithError("listing children", err)
		}
		for _, c := range children {
			ids = append(ids, c.ID)
			queue = append(queue, item{c.ID, it.depth + 1})
		}
	}
	return ids, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", models.BadRequest("title is required")
	}
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return "", models.BadRequest("title is too long").WithDetail("max_length", models.MaxTitleLength)
	}
	return title, nil
}
