package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"time"

	"github.com/maruel/ksid"

	"github.com/noteleaf/noteleaf/internal/models"
	"github.com/noteleaf/noteleaf/internal/storage/sqlite"
)

// InitiateUploadRequest declares an upload before any bytes move.
type InitiateUploadRequest struct {
	OwnerID  ksid.ID
	ParentID ksid.ID
	FileName string
	MimeType string
	// Size is the client-declared byte count, enforced again at finalize.
	Size int64
	// Checksum is an optional hex sha256 of the content, enabling dedup.
	Checksum string
}

// UploadTicket is the outcome of initiating an upload. When IsDuplicate is
// set the owner already holds identical content: NodeID is the existing
// node, nothing new was created and UploadURL is empty.
type UploadTicket struct {
	NodeID      ksid.ID   `json:"node_id"`
	UploadURL   string    `json:"upload_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	IsDuplicate bool      `json:"is_duplicate"`
}

// InitiateUpload starts the two-phase upload flow: it creates a file node in
// the uploading state and mints a presigned URL for the client to PUT the
// bytes against. If the declared checksum matches content the owner already
// holds, nothing is created and the ticket points at the existing node.
func (s *Service) InitiateUpload(ctx context.Context, req InitiateUploadRequest) (*UploadTicket, error) {
	title, err := validateTitle(req.FileName)
	if err != nil {
		return nil, err
	}
	if req.Size <= 0 {
		return nil, models.BadRequest("size must be positive")
	}
	if req.Size > s.maxUploadSize {
		return nil, models.PayloadTooLarge(s.maxUploadSize)
	}
	parent, err := s.resolveParent(ctx, req.OwnerID, req.ParentID)
	if err != nil {
		return nil, err
	}

	if req.Checksum != "" {
		existing, err := s.findDuplicate(ctx, req.OwnerID, req.Checksum, req.Size)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.logger.InfoContext(ctx, "upload deduplicated",
				"existing_node_id", existing.NodeID, "checksum", req.Checksum)
			return &UploadTicket{NodeID: existing.NodeID, IsDuplicate: true}, nil
		}
	}

	siblings, err := s.store.ListSiblings(ctx, req.OwnerID, req.ParentID)
	if err != nil {
		return nil, models.InternalWithError("listing siblings", err)
	}

	now := time.Now().UTC()
	n := &models.Node{
		ID:       ksid.NewID(),
		OwnerID:  req.OwnerID,
		Title:    title,
		ParentID: req.ParentID,
		Position: len(siblings),
		Kind:     models.KindFile,
		Created:  now,
		Modified: now,
	}
	if parent != nil {
		if err := s.checkDepth(parent); err != nil {
			return nil, err
		}
		n.Path = parent.ChildPath()
	}

	f := &models.FilePayload{
		NodeID:     n.ID,
		FileName:   req.FileName,
		MimeType:   req.MimeType,
		Size:       req.Size,
		Checksum:   req.Checksum,
		StorageKey: storageKey(req.OwnerID, n.ID, req.FileName),
		Status:     models.UploadStatusUploading,
		Created:    now,
		Modified:   now,
	}
	url, err := s.blobs.PresignUpload(ctx, f.StorageKey, req.MimeType, s.presignTTL)
	if err != nil {
		return nil, models.InternalWithError("presigning upload", err)
	}
	if err := s.insertWithSlug(ctx, n, &models.Payload{Kind: models.KindFile, File: f}); err != nil {
		return nil, err
	}
	return &UploadTicket{
		NodeID:    n.ID,
		UploadURL: url,
		ExpiresAt: now.Add(s.presignTTL),
	}, nil
}

// findDuplicate looks up a ready payload with identical content for the
// owner. A miss returns nil without error.
func (s *Service) findDuplicate(ctx context.Context, ownerID ksid.ID, checksum string, size int64) (*models.FilePayload, error) {
	existing, err := s.store.FindReadyFileByChecksum(ctx, ownerID, checksum, size)
	if err != nil && err != sqlite.ErrNotFound {
		return nil, models.InternalWithError("checking for duplicate content", err)
	}
	return existing, nil
}

// FinalizeUpload completes the two-phase flow after the client's transfer.
// On a reported success the stored object is verified before the payload
// turns ready; a missing or size-mismatched object fails the upload instead.
// Finalizing twice is rejected.
func (s *Service) FinalizeUpload(ctx context.Context, ownerID, nodeID ksid.ID, success bool, clientError string) (*models.FilePayload, error) {
	n, err := s.loadOwned(ctx, ownerID, nodeID)
	if err != nil {
		return nil, err
	}
	if n.Kind != models.KindFile {
		return nil, models.BadRequest("node is not a file")
	}
	p, err := s.store.GetPayload(ctx, n)
	if err != nil {
		return nil, models.InternalWithError("loading payload", err)
	}
	f := p.File
	if f.Status != models.UploadStatusUploading {
		return nil, models.BadRequest("upload already finalized").
			WithDetail("status", string(f.Status))
	}

	if !success {
		return s.failUpload(ctx, f, clientError)
	}

	exists, size, err := s.blobs.Exists(ctx, f.StorageKey)
	if err != nil {
		return nil, models.InternalWithError("verifying stored object", err)
	}
	if !exists {
		return s.failUpload(ctx, f, "object not found in storage")
	}
	if size != f.Size {
		return s.failUpload(ctx, f, fmt.Sprintf("size mismatch: declared %d, stored %d", f.Size, size))
	}

	if err := s.store.UpdateFileStatus(ctx, nodeID, models.UploadStatusReady, ""); err != nil {
		return nil, models.InternalWithError("updating upload status", err)
	}
	f.Status = models.UploadStatusReady
	f.ErrorMessage = ""
	f.Modified = time.Now().UTC()

	s.extractMetadata(ctx, f)
	return f, nil
}

func (s *Service) failUpload(ctx context.Context, f *models.FilePayload, reason string) (*models.FilePayload, error) {
	if err := s.store.UpdateFileStatus(ctx, f.NodeID, models.UploadStatusFailed, reason); err != nil {
		return nil, models.InternalWithError("updating upload status", err)
	}
	f.Status = models.UploadStatusFailed
	f.ErrorMessage = reason
	f.Modified = time.Now().UTC()
	s.logger.WarnContext(ctx, "upload failed", "node_id", f.NodeID, "reason", reason)
	return f, nil
}

// extractMetadata runs the configured extractor on a ready upload. Failures
// are logged and swallowed; the upload stays ready either way.
func (s *Service) extractMetadata(ctx context.Context, f *models.FilePayload) {
	md, err := s.extractor.Extract(ctx, s.blobs, f.StorageKey, f.MimeType)
	if err != nil {
		s.logger.WarnContext(ctx, "metadata extraction failed",
			"node_id", f.NodeID, "error", err)
		return
	}
	if md == nil {
		return
	}
	if err := s.store.UpdateFileMetadata(ctx, f.NodeID, md.Width, md.Height, md.Duration, md.ThumbnailKey); err != nil {
		s.logger.WarnContext(ctx, "storing extracted metadata failed",
			"node_id", f.NodeID, "error", err)
		return
	}
	f.Width = md.Width
	f.Height = md.Height
	f.Duration = md.Duration
	f.ThumbnailKey = md.ThumbnailKey
}

// Upload is the single-request path for small files: the server receives the
// bytes, stores them and the node turns ready immediately. Dedup applies the
// same way as the two-phase flow, returning the existing node on a hit.
func (s *Service) Upload(ctx context.Context, ownerID, parentID ksid.ID, fileName, mimeType string, data []byte) (*models.Node, error) {
	title, err := validateTitle(fileName)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, models.BadRequest("file content is empty")
	}
	if int64(len(data)) > s.maxUploadSize {
		return nil, models.PayloadTooLarge(s.maxUploadSize)
	}
	parent, err := s.resolveParent(ctx, ownerID, parentID)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	existing, err := s.findDuplicate(ctx, ownerID, checksum, int64(len(data)))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.InfoContext(ctx, "upload deduplicated",
			"existing_node_id", existing.NodeID, "checksum", checksum)
		return s.loadOwned(ctx, ownerID, existing.NodeID)
	}

	siblings, err := s.store.ListSiblings(ctx, ownerID, parentID)
	if err != nil {
		return nil, models.InternalWithError("listing siblings", err)
	}

	now := time.Now().UTC()
	n := &models.Node{
		ID:       ksid.NewID(),
		OwnerID:  ownerID,
		Title:    title,
		ParentID: parentID,
		Position: len(siblings),
		Kind:     models.KindFile,
		Created:  now,
		Modified: now,
	}
	if parent != nil {
		if err := s.checkDepth(parent); err != nil {
			return nil, err
		}
		n.Path = parent.ChildPath()
	}

	f := &models.FilePayload{
		NodeID:     n.ID,
		FileName:   fileName,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		Checksum:   checksum,
		StorageKey: storageKey(ownerID, n.ID, fileName),
		Status:     models.UploadStatusReady,
		Created:    now,
		Modified:   now,
	}
	if err := s.blobs.Write(ctx, f.StorageKey, mimeType, data); err != nil {
		return nil, models.InternalWithError("storing object", err)
	}
	if err := s.insertWithSlug(ctx, n, &models.Payload{Kind: models.KindFile, File: f}); err != nil {
		return nil, err
	}
	s.extractMetadata(ctx, f)
	return n, nil
}

// storageKey builds the object key for a fresh upload. The node ID keeps
// keys unique; only the extension survives from the client's file name.
func storageKey(ownerID, nodeID ksid.ID, fileName string) string {
	return fmt.Sprintf("uploads/%s/%s%s", ownerID, nodeID, path.Ext(fileName))
}
