package dto

import (
	"time"

	"github.com/maruel/ksid"

	"github.com/noteleaf/noteleaf/internal/models"
)

// NodeResponse returns a node, with its payload when one was requested.
type NodeResponse struct {
	Node    *models.Node    `json:"node"`
	Payload *models.Payload `json:"payload,omitempty"`
}

// NodeListResponse returns an ordered set of nodes.
type NodeListResponse struct {
	Nodes []*models.Node `json:"nodes"`
}

// DuplicatedNode pairs a requested node id with the copy made of it.
type DuplicatedNode struct {
	OriginalID ksid.ID `json:"original_id"`
	NewID      ksid.ID `json:"new_id"`
	Title      string  `json:"title"`
}

// DuplicateNodesResponse lists the copies that were created, in request
// order. Skipped items are absent, which the original ids make visible.
type DuplicateNodesResponse struct {
	Nodes []DuplicatedNode `json:"nodes"`
}

// DeleteNodeResponse confirms a deletion.
type DeleteNodeResponse struct {
	Deleted bool `json:"deleted"`
}

// InitiateUploadResponse returns the upload ticket. UploadURL is empty when
// the content was deduplicated and the node is ready immediately.
type InitiateUploadResponse struct {
	NodeID      ksid.ID   `json:"node_id"`
	UploadURL   string    `json:"upload_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	IsDuplicate bool      `json:"is_duplicate"`
}

// FinalizeUploadResponse returns the upload's settled state.
type FinalizeUploadResponse struct {
	NodeID       ksid.ID             `json:"node_id"`
	Status       models.UploadStatus `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}
