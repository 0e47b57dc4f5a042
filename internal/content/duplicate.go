package content

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/maruel/ksid"

	"github.com/noteleaf/noteleaf/internal/models"
	"github.com/noteleaf/noteleaf/internal/storage/sqlite"
)

// copyTitleSuffix marks duplicated nodes in their title.
const copyTitleSuffix = " (Copy)"

// DuplicateResult pairs a requested source node with the copy made of it,
// so callers can tell which inputs succeeded when some were skipped.
type DuplicateResult struct {
	OriginalID ksid.ID
	Node       *models.Node
}

// DuplicateNodes deep-copies each listed subtree under the target parent,
// appending the copies at the end of the destination sibling set in request
// order. Each copy is all-or-nothing on its own; a failed item is skipped
// with a warning and the batch continues. A depth ceiling violation aborts
// the whole batch since it signals structural corruption.
func (s *Service) DuplicateNodes(ctx context.Context, ownerID ksid.ID, ids []ksid.ID, targetParentID ksid.ID) ([]DuplicateResult, error) {
	parent, err := s.resolveParent(ctx, ownerID, targetParentID)
	if err != nil {
		return nil, err
	}
	siblings, err := s.store.ListSiblings(ctx, ownerID, targetParentID)
	if err != nil {
		return nil, models.InternalWithError("listing siblings", err)
	}

	results := make([]DuplicateResult, 0, len(ids))
	pos := len(siblings)
	for _, id := range ids {
		c, err := s.duplicateOne(ctx, ownerID, id, targetParentID, parent, pos)
		if err != nil {
			var apiErr *models.APIError
			if errors.As(err, &apiErr) && apiErr.Code() == models.ErrorCodeDepthExceeded {
				return nil, err
			}
			s.logger.WarnContext(ctx, "skipping node in duplicate batch",
				"node_id", id, "error", err)
			continue
		}
		results = append(results, DuplicateResult{OriginalID: id, Node: c})
		pos++
	}
	return results, nil
}

// duplicateOne copies one subtree. Every node in the copy gets a fresh ID,
// a derived slug, a recomputed path, a marked title, and is unpublished.
// File payloads share the original's stored object rather than copying
// bytes.
func (s *Service) duplicateOne(ctx context.Context, ownerID, id, targetParentID ksid.ID, parent *models.Node, position int) (*models.Node, error) {
	root, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	type item struct {
		node   *models.Node
		newPar *models.Node // nil for the root copy's parent
		depth  int
	}
	now := time.Now().UTC()
	ts := now.Unix()
	var entries []sqlite.NodeWithPayload

	queue := []item{{root, parent, 0}}
	isRoot := true
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.depth >= maxTreeDepth {
			return nil, models.TreeDepthExceeded()
		}

		src := it.node
		c := src.Clone()
		c.ID = ksid.NewID()
		c.Title = copyTitle(src.Title)
		c.IsPublished = false
		c.Created = now
		c.Modified = now
		c.DeletedAt = time.Time{}
		if it.newPar != nil {
			c.ParentID = it.newPar.ID
			c.Path = it.newPar.ChildPath()
		} else {
			c.Path = ""
		}
		if isRoot {
			c.ParentID = targetParentID
			c.Position = position
			isRoot = false
		}
		if c.Slug, err = s.copySlug(ctx, ownerID, src.Slug, ts); err != nil {
			return nil, err
		}

		p, err := s.store.GetPayload(ctx, src)
		if err != nil {
			return nil, models.InternalWithError("loading payload", err)
		}
		p = p.Clone()
		retargetPayload(p, c.ID, now)

		entries = append(entries, sqlite.NodeWithPayload{Node: c, Payload: p})

		children, err := s.store.ListChildren(ctx, src.ID)
		if err != nil {
			return nil, models.InternalWithError("listing children", err)
		}
		for _, child := range children {
			queue = append(queue, item{child, c, it.depth + 1})
		}
	}

	if err := s.store.CreateSubtree(ctx, entries); err != nil {
		return nil, fmt.Errorf("storing subtree copy: %w", err)
	}
	return entries[0].Node, nil
}

// copySlug derives the copy's slug from the original and verifies it is
// free, falling back to a randomized slug if the obvious candidate is taken.
func (s *Service) copySlug(ctx context.Context, ownerID ksid.ID, origSlug string, ts int64) (string, error) {
	candidate := fmt.Sprintf("%s-copy-%d", origSlug, ts)
	exists, err := s.store.SlugExists(ctx, ownerID, candidate)
	if err != nil {
		return "", models.InternalWithError("checking slug", err)
	}
	if exists {
		candidate = fallbackSlug(origSlug + "-copy")
	}
	return candidate, nil
}

// copyTitle appends the copy marker, trimming the base so the result stays
// within the title length limit.
func copyTitle(title string) string {
	limit := models.MaxTitleLength - utf8.RuneCountInString(copyTitleSuffix)
	if utf8.RuneCountInString(title) > limit {
		runes := []rune(title)
		title = string(runes[:limit])
	}
	return title + copyTitleSuffix
}

// retargetPayload points a cloned payload at its new node.
func retargetPayload(p *models.Payload, nodeID ksid.ID, now time.Time) {
	if p == nil {
		return
	}
	if p.Note != nil {
		p.Note.NodeID = nodeID
	}
	if p.HTML != nil {
		p.HTML.NodeID = nodeID
	}
	if p.Code != nil {
		p.Code.NodeID = nodeID
	}
	if p.Link != nil {
		p.Link.NodeID = nodeID
	}
	if p.FolderSettings != nil {
		p.FolderSettings.NodeID = nodeID
	}
	if p.Doc != nil {
		p.Doc.NodeID = nodeID
	}
	if p.File != nil {
		p.File.NodeID = nodeID
		p.File.Created = now
		p.File.Modified = now
	}
}
