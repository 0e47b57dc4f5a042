package content

import (
	"context"
	"time"

	"github.com/maruel/ksid"

	"github.com/noteleaf/noteleaf/internal/models"
	"github.com/noteleaf/noteleaf/internal/storage/sqlite"
)

// MoveNode re-parents a node and/or changes its position among its siblings.
// index is the desired slot in the destination sibling set and is clamped to
// the valid range. After the move both touched sibling sets hold contiguous
// positions 0..n-1.
func (s *Service) MoveNode(ctx context.Context, ownerID, nodeID, newParentID ksid.ID, index int) (*models.Node, error) {
	n, err := s.loadOwned(ctx, ownerID, nodeID)
	if err != nil {
		return nil, err
	}
	if newParentID == nodeID {
		return nil, models.BadRequest("cannot move a node under itself")
	}
	parent, err := s.resolveParent(ctx, ownerID, newParentID)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		if err := s.checkCycle(ctx, nodeID, parent); err != nil {
			return nil, err
		}
		if err := s.checkDepth(parent); err != nil {
			return nil, err
		}
	}

	pos, err := s.store.ApplyMove(ctx, ownerID, nodeID, n.ParentID, newParentID, index)
	if err != nil {
		return nil, models.InternalWithError("applying move", err)
	}
	n.ParentID = newParentID
	n.Position = pos
	n.Modified = time.Now().UTC()

	newPath := ""
	if parent != nil {
		newPath = parent.ChildPath()
	}
	if n.Path != newPath {
		n.Path = newPath
		if err := s.store.UpdatePath(ctx, nodeID, newPath); err != nil {
			return nil, models.InternalWithError("updating path", err)
		}
		if err := s.propagatePaths(ctx, n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// checkCycle rejects moving a node under itself or any of its descendants by
// walking the destination's parent chain upward. The walk is bounded; a
// chain longer than the depth ceiling fails the whole move.
func (s *Service) checkCycle(ctx context.Context, nodeID ksid.ID, dest *models.Node) error {
	cur := dest
	for hops := 0; ; hops++ {
		if hops >= maxTreeDepth {
			return models.TreeDepthExceeded()
		}
		if cur.ID == nodeID {
			return models.BadRequest("cannot move a node into its own subtree").
				WithDetail("node_id", nodeID.String())
		}
		if cur.ParentID.IsZero() {
			return nil
		}
		next, err := s.store.GetNode(ctx, cur.ParentID)
		if err != nil {
			if err == sqlite.ErrNotFound {
				// Tombstoned ancestor; the chain ends here.
				return nil
			}
			return models.InternalWithError("walking ancestry", err)
		}
		cur = next
	}
}
