package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("object not found")

// Storage stores uploaded media under slash-separated keys.
type Storage interface {
	// Write stores content from the reader under key. size is -1 when unknown.
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read retrieves content for the given key. The caller closes the reader.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content with the given key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key under prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a URL a client can fetch the object from.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}
