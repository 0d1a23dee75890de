// Package storage defines the interface for media file storage backends.
// Swap implementations by changing the concrete type injected at startup:
// the Telegram backend stores files in a chat channel via the Bot API, the
// MinIO implementation works with any S3-compatible provider.
package storage

import (
	"context"
	"io"
)

// Store is the interface uploads and retrievals go through. Upload returns
// an opaque backend file ID that is persisted with the media record and
// later handed back to Fetch.
type Store interface {
	// Upload streams data to the backend and returns its file ID.
	Upload(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (string, error)
	// Fetch opens the stored bytes for a file ID, returning the body and
	// its content type. The caller closes the body.
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, string, error)
}
