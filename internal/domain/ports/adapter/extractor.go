package adapter

import (
	"context"

	"telegram-video-courier/internal/domain/model"
)

// ExtractOptions tune one call into the media-extraction collaborator.
type ExtractOptions struct {
	Quality       string  // format selector, "" = collaborator default
	Retries       int     // internal retry count passed to the collaborator
	SocketTimeout float64 // seconds
}

// MediaExtractor is the external media-extraction collaborator. Resolve is
// metadata-only (no byte transfer); Download transfers the artifact into
// destDir and returns the resolved local path.
type MediaExtractor interface {
	Resolve(ctx context.Context, url string, opts ExtractOptions) (*model.MediaDescriptor, error)

	// Download reports periodic progress through progress (may be nil).
	// Implementations must call it from the downloading goroutine only.
	Download(ctx context.Context, url string, destDir string, opts ExtractOptions, progress func(downloaded, total int64)) (string, error)
}
