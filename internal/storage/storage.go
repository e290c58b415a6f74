// Package storage defines the durable blob boundary used for spilled results
// and seed datasets. Result keys are append-only: a new key per result, never
// overwritten, so concurrent writers cannot race on an object.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Lister enumerates stored objects under a key prefix. Used by dataset
// hydration to discover parquet files without a separate manifest.
type Lister interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
