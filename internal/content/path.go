package content

import (
	"context"

	"github.com/noteleaf/noteleaf/internal/models"
)

// propagatePaths rewrites the materialized paths of every live descendant of
// n after n itself moved. n's own path must already be persisted. The walk
// is iterative and bounded; exceeding the bound aborts with the subtree
// partially rewritten, which a later propagation repairs since paths are
// derived state.
func (s *Service) propagatePaths(ctx context.Context, n *models.Node) error {
	type item struct {
		node  *models.Node
		depth int
	}
	queue := []item{{n, 0}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.depth >= maxTreeDepth {
			return models.TreeDepthExceeded()
		}
		children, err := s.store.ListChildren(ctx, it.node.ID)
		if err != nil {
			return models.InternalWithError("listing children", err)
		}
		childPath := it.node.ChildPath()
		for _, c := range children {
			if c.Path != childPath {
				c.Path = childPath
				if err := s.store.UpdatePath(ctx, c.ID, childPath); err != nil {
					return models.InternalWithError("updating path", err)
				}
			}
			queue = append(queue, item{c, it.depth + 1})
		}
	}
	return nil
}
