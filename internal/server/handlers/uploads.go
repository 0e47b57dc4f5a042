package handlers

import (
	"context"

	"github.com/maruel/ksid"

	"github.com/noteleaf/noteleaf/internal/content"
	"github.com/noteleaf/noteleaf/internal/server/dto"
)

// UploadHandler handles upload lifecycle HTTP requests.
type UploadHandler struct {
	svc *content.Service
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(svc *content.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// Initiate starts a two-phase upload and returns the ticket.
func (h *UploadHandler) Initiate(ctx context.Context, ownerID ksid.ID, req *dto.InitiateUploadRequest) (*dto.InitiateUploadResponse, error) {
	parentID, err := parseOptionalID("parent_id", req.ParentID)
	if err != nil {
		return nil, err
	}
	ticket, err := h.svc.InitiateUpload(ctx, content.InitiateUploadRequest{
		OwnerID:  ownerID,
		ParentID: parentID,
		FileName: req.FileName,
		MimeType: req.MimeType,
		Size:     req.Size,
		Checksum: req.Checksum,
	})
	if err != nil {
		return nil, err
	}
	return &dto.InitiateUploadResponse{
		NodeID:      ticket.NodeID,
		UploadURL:   ticket.UploadURL,
		ExpiresAt:   ticket.ExpiresAt,
		IsDuplicate: ticket.IsDuplicate,
	}, nil
}

// Finalize settles a two-phase upload after the client's transfer.
func (h *UploadHandler) Finalize(ctx context.Context, ownerID ksid.ID, req *dto.FinalizeUploadRequest) (*dto.FinalizeUploadResponse, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	f, err := h.svc.FinalizeUpload(ctx, ownerID, id, req.Success, req.Error)
	if err != nil {
		return nil, err
	}
	return &dto.FinalizeUploadResponse{
		NodeID:       f.NodeID,
		Status:       f.Status,
		ErrorMessage: f.ErrorMessage,
	}, nil
}

// Direct uploads a small file in one request.
func (h *UploadHandler) Direct(ctx context.Context, ownerID ksid.ID, req *dto.DirectUploadRequest) (*dto.NodeResponse, error) {
	parentID, err := parseOptionalID("parent_id", req.ParentID)
	if err != nil {
		return nil, err
	}
	n, err := h.svc.Upload(ctx, ownerID, parentID, req.FileName, req.MimeType, req.Data)
	if err != nil {
		return nil, err
	}
	return &dto.NodeResponse{Node: n}, nil
}
