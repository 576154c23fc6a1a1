package fetch

import (
	"context"
	"fmt"
	"strings"
)

// Downloader stores a remote document locally and returns its path.
type Downloader interface {
	Download(ctx context.Context, raw string) (string, error)
}

// Mux routes s3:// URLs to S3 and everything else to HTTP, where the guard
// rejects unsupported schemes.
type Mux struct {
	HTTP Downloader
	S3   Downloader
}

func (m *Mux) Download(ctx context.Context, raw string) (string, error) {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "s3://") {
		if m.S3 == nil {
			return "", fmt.Errorf("%w: s3 source not configured", ErrFetchFailed)
		}
		return m.S3.Download(ctx, strings.TrimSpace(raw))
	}
	return m.HTTP.Download(ctx, raw)
}
