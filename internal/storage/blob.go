// Package storage persists opaque blobs under string keys, either in a local
// directory or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("blob not found")

// BlobStore is a flat key/value store for persisted corpus state.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}

var (
	_ BlobStore = (*DirStore)(nil)
	_ BlobStore = (*S3Client)(nil)
)
