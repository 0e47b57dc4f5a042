// Package handlers implements the HTTP API handlers on top of the content
// service. Handlers translate between DTOs and domain types; all semantics
// live in the content package.
package handlers

import (
	"context"

	"github.com/maruel/ksid"

	"github.com/noteleaf/noteleaf/internal/content"
	"github.com/noteleaf/noteleaf/internal/models"
	"github.com/noteleaf/noteleaf/internal/server/dto"
)

// NodeHandler handles node tree HTTP requests.
type NodeHandler struct {
	svc *content.Service
}

// NewNodeHandler creates a node handler.
func NewNodeHandler(svc *content.Service) *NodeHandler {
	return &NodeHandler{svc: svc}
}

// parseID parses a required node ID from a request field.
func parseID(field, value string) (ksid.ID, error) {
	id, err := ksid.Parse(value)
	if err != nil || id.IsZero() {
		return 0, models.BadRequest("invalid id").WithDetail("field", field)
	}
	return id, nil
}

// parseOptionalID parses an ID that may be empty, meaning the root level.
func parseOptionalID(field, value string) (ksid.ID, error) {
	if value == "" {
		return 0, nil
	}
	return parseID(field, value)
}

// Create creates a node. A nil payload creates a folder.
func (h *NodeHandler) Create(ctx context.Context, ownerID ksid.ID, req *dto.CreateNodeRequest) (*dto.NodeResponse, error) {
	parentID, err := parseOptionalID("parent_id", req.ParentID)
	if err != nil {
		return nil, err
	}
	categoryID, err := parseOptionalID("category_id", req.CategoryID)
	if err != nil {
		return nil, err
	}
	n, err := h.svc.CreateNode(ctx, content.CreateNodeRequest{
		OwnerID:    ownerID,
		ParentID:   parentID,
		Title:      req.Title,
		Payload:    req.Payload,
		CategoryID: categoryID,
		Icon:       req.Icon,
		Color:      req.Color,
	})
	if err != nil {
		return nil, err
	}
	return &dto.NodeResponse{Node: n, Payload: req.Payload}, nil
}

// Get returns a node and its payload.
func (h *NodeHandler) Get(ctx context.Context, ownerID ksid.ID, req *dto.GetNodeRequest) (*dto.NodeResponse, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	n, p, err := h.svc.GetNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return &dto.NodeResponse{Node: n, Payload: p}, nil
}

// ListRoot lists the owner's root nodes in display order.
func (h *NodeHandler) ListRoot(ctx context.Context, ownerID ksid.ID, _ *dto.ListRootRequest) (*dto.NodeListResponse, error) {
	nodes, err := h.svc.ListChildren(ctx, ownerID, 0)
	if err != nil {
		return nil, err
	}
	return &dto.NodeListResponse{Nodes: nodes}, nil
}

// ListChildren lists a node's direct children in display order.
func (h *NodeHandler) ListChildren(ctx context.Context, ownerID ksid.ID, req *dto.ListChildrenRequest) (*dto.NodeListResponse, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	nodes, err := h.svc.ListChildren(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return &dto.NodeListResponse{Nodes: nodes}, nil
}

// Move re-parents and/or repositions a node.
func (h *NodeHandler) Move(ctx context.Context, ownerID ksid.ID, req *dto.MoveNodeRequest) (*dto.NodeResponse, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	parentID, err := parseOptionalID("parent_id", req.ParentID)
	if err != nil {
		return nil, err
	}
	n, err := h.svc.MoveNode(ctx, ownerID, id, parentID, req.Index)
	if err != nil {
		return nil, err
	}
	return &dto.NodeResponse{Node: n}, nil
}

// Duplicate deep-copies subtrees under a target parent.
func (h *NodeHandler) Duplicate(ctx context.Context, ownerID ksid.ID, req *dto.DuplicateNodesRequest) (*dto.DuplicateNodesResponse, error) {
	ids := make([]ksid.ID, 0, len(req.NodeIDs))
	for _, raw := range req.NodeIDs {
		id, err := parseID("node_ids", raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	targetID, err := parseOptionalID("target_parent_id", req.TargetParentID)
	if err != nil {
		return nil, err
	}
	copies, err := h.svc.DuplicateNodes(ctx, ownerID, ids, targetID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.DuplicatedNode, len(copies))
	for i, c := range copies {
		out[i] = dto.DuplicatedNode{
			OriginalID: c.OriginalID,
			NewID:      c.Node.ID,
			Title:      c.Node.Title,
		}
	}
	return &dto.DuplicateNodesResponse{Nodes: out}, nil
}

// Rename changes a node's title.
func (h *NodeHandler) Rename(ctx context.Context, ownerID ksid.ID, req *dto.RenameNodeRequest) (*dto.NodeResponse, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	n, err := h.svc.RenameNode(ctx, ownerID, id, req.Title)
	if err != nil {
		return nil, err
	}
	return &dto.NodeResponse{Node: n}, nil
}

// Delete tombstones a node and its subtree.
func (h *NodeHandler) Delete(ctx context.Context, ownerID ksid.ID, req *dto.DeleteNodeRequest) (*dto.DeleteNodeResponse, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	if err := h.svc.DeleteNode(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return &dto.DeleteNodeResponse{Deleted: true}, nil
}
