// Package storage holds the Object Store Adapter: a small blob interface with
// S3-compatible and local-disk implementations.
package storage

import (
	"context"
	"io"
	"time"
)

// PutOptions is metadata recorded alongside an object.
type PutOptions struct {
	ContentType  string
	ContentHash  string
	OriginalName string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ContentHash  string
	OriginalName string
	LastModified time.Time
}

// ObjectStore stores immutable blobs by key. Missing objects are reported as
// common.ErrorNotFound, backend failures wrap common.ErrorStorage.
type ObjectStore interface {
	// Put writes size bytes from body under key. body must be seekable so
	// the backend can retry or checksum it.
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, opts PutOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// Presign returns a time-limited download URL, or common.ErrorUnsupported.
	Presign(ctx context.Context, key, downloadName string, ttl time.Duration) (string, error)
	// EnsureBucket creates the backing container when missing.
	EnsureBucket(ctx context.Context) error
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}
