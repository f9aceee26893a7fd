// Package storage provides object storage abstractions for catalog
// snapshot persistence.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts object storage operations. Implementations
// include S3 and local filesystem for testing.
type ObjectStorage interface {
	// Put uploads an object.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Get downloads an object. Returns ErrObjectNotFound when the
	// object does not exist.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Delete removes an object. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks whether an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// List returns all object paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
