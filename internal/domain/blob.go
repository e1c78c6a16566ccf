package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader inspects object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// RunArchiver copies a finished run's scores to cold storage and returns the
// object path.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, runAt time.Time, scores []TrendScore) (string, error)
}
