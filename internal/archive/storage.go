// Package archive exports table snapshots to object storage as
// snappy-compressed JSONL archives.
package archive

import (
	"context"
	"errors"
)

// Common errors for object storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
)

// ObjectStorage abstracts the archive destination. Implementations include
// S3 and the local filesystem.
type ObjectStorage interface {
	// Put uploads an object, overwriting any existing object at the path.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Get downloads an object. Returns ErrObjectNotFound if it does not
	// exist.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Exists checks whether an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// List returns all object paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
