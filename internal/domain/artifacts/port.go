package artifacts

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrUnavailable = errors.New("artifact storage unavailable")
)

// Area is a scoped file area (uploads or reports). Keys are base filenames;
// Put replaces an existing object atomically and returns its path.
type Area interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
	Check(ctx context.Context) error
}

// Artifact is an in-memory rendered file, e.g. a chart image.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}
