// Package blob abstracts the object store holding uploaded file bytes.
//
// The content layer never streams bytes through itself for the presigned
// flow: clients PUT directly against a presigned URL and the store is only
// asked to mint URLs and confirm object existence.
package blob

import (
	"context"
	"io"
	"time"
)

// Store is the object storage surface the content layer needs.
type Store interface {
	// PresignUpload mints a time-limited URL a client can PUT the object to.
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	// Exists reports whether the object is present, and its stored size.
	Exists(ctx context.Context, key string) (bool, int64, error)
	// Read opens the object for reading. The caller closes the reader.
	Read(ctx context.Context, key string) (io.ReadCloser, error)
	// Write stores the object server-side, for the single-request upload path.
	Write(ctx context.Context, key, contentType string, data []byte) error
	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// Metadata is what an Extractor could recover from an uploaded object.
type Metadata struct {
	Width        int
	Height       int
	Duration     float64
	ThumbnailKey string
}

// Extractor derives display metadata (dimensions, duration, thumbnail) from
// a finalized upload. Extraction is best effort; a failure must never fail
// the upload itself.
type Extractor interface {
	Extract(ctx context.Context, store Store, key, mimeType string) (*Metadata, error)
}

// NopExtractor extracts nothing. Used when no media tooling is configured.
type NopExtractor struct{}

// Extract implements Extractor.
func (NopExtractor) Extract(context.Context, Store, string, string) (*Metadata, error) {
	return nil, nil
}
