// Package objstore is the object-store boundary of the pipeline. Staging
// objects and the accumulated parquet object are read and written through
// ObjectStore, which is backed by S3 in production and by MemStore in tests.
package objstore

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the subset of object-store operations the pipeline uses.
//
// Implementations return errors coded errors.ErrNotFound when the bucket or
// key does not exist, and errors.ErrPreconditionFailed when a conditional
// Put loses against another writer.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) (*Object, error)
	Head(ctx context.Context, bucket, key string) (*ObjectInfo, error)
	Put(ctx context.Context, in *PutInput) (*ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
	// Download streams the object into w and returns the bytes written.
	Download(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Bucket       string
	Key          string
	ETag         string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Object is an object's description and its full content.
type Object struct {
	ObjectInfo
	Body []byte
}

// PutInput describes a write.
type PutInput struct {
	Bucket      string
	Key         string
	Body        []byte
	ContentType string
	Metadata    map[string]string

	// IfMatch makes the write conditional on the current ETag.
	IfMatch string
	// IfNoneMatch set to "*" makes the write fail when the key exists.
	IfNoneMatch string
}

// AnyETag is the IfNoneMatch value for create-only writes.
const AnyETag = "*"
