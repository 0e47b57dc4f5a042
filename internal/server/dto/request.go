// Package dto defines the HTTP API request and response types.
//
// Request types carry path/query/json struct tags for parameter binding and
// implement Validatable. Node payloads reuse the models.Payload shape; the
// rest of the contract is self-contained so internal model changes do not
// leak into the API by accident.
package dto

import (
	"github.com/noteleaf/noteleaf/internal/models"
)

// --- Nodes ---

// CreateNodeRequest creates a node. A nil payload creates a folder.
type CreateNodeRequest struct {
	ParentID string          `json:"parent_id"`
	Title    string          `json:"title"`
	Payload  *models.Payload `json:"payload,omitempty"`

	CategoryID string `json:"category_id,omitempty"`
	Icon       string `json:"icon,omitempty"`
	Color      string `json:"color,omitempty"`
}

// Validate validates the create node request fields.
func (r *CreateNodeRequest) Validate() error {
	if r.Title == "" {
		return MissingField("title")
	}
	return nil
}

// GetNodeRequest fetches a node and its payload.
type GetNodeRequest struct {
	ID string `path:"id"`
}

// Validate validates the get node request fields.
func (r *GetNodeRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// ListRootRequest lists the owner's root nodes.
type ListRootRequest struct{}

// Validate is a no-op for ListRootRequest.
func (r *ListRootRequest) Validate() error {
	return nil
}

// ListChildrenRequest lists the direct children of a node.
type ListChildrenRequest struct {
	ID string `path:"id"`
}

// Validate validates the list children request fields.
func (r *ListChildrenRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// MoveNodeRequest re-parents and/or repositions a node. An empty parent_id
// moves the node to the root level.
type MoveNodeRequest struct {
	ID       string `path:"id" json:"-"`
	ParentID string `json:"parent_id"`
	Index    int    `json:"index"`
}

// Validate validates the move node request fields.
func (r *MoveNodeRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// DuplicateNodesRequest deep-copies subtrees under a target parent.
type DuplicateNodesRequest struct {
	NodeIDs        []string `json:"node_ids"`
	TargetParentID string   `json:"target_parent_id"`
}

// Validate validates the duplicate request fields.
func (r *DuplicateNodesRequest) Validate() error {
	if len(r.NodeIDs) == 0 {
		return MissingField("node_ids")
	}
	return nil
}

// RenameNodeRequest changes a node's title.
type RenameNodeRequest struct {
	ID    string `path:"id" json:"-"`
	Title string `json:"title"`
}

// Validate validates the rename request fields.
func (r *RenameNodeRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	if r.Title == "" {
		return MissingField("title")
	}
	return nil
}

// DeleteNodeRequest tombstones a node and its subtree.
type DeleteNodeRequest struct {
	ID string `path:"id"`
}

// Validate validates the delete request fields.
func (r *DeleteNodeRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// --- Uploads ---

// InitiateUploadRequest starts a two-phase upload.
type InitiateUploadRequest struct {
	ParentID string `json:"parent_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum,omitempty"`
}

// Validate validates the initiate upload request fields.
func (r *InitiateUploadRequest) Validate() error {
	if r.FileName == "" {
		return MissingField("file_name")
	}
	if r.Size <= 0 {
		return MissingField("size")
	}
	return nil
}

// FinalizeUploadRequest completes a two-phase upload.
type FinalizeUploadRequest struct {
	ID      string `path:"id" json:"-"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Validate validates the finalize upload request fields.
func (r *FinalizeUploadRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// DirectUploadRequest is the single-request upload path for small files.
// Data is base64 in JSON.
type DirectUploadRequest struct {
	ParentID string `json:"parent_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Validate validates the direct upload request fields.
func (r *DirectUploadRequest) Validate() error {
	if r.FileName == "" {
		return MissingField("file_name")
	}
	if len(r.Data) == 0 {
		return MissingField("data")
	}
	return nil
}

// --- Health ---

// HealthRequest is the health check request.
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}
