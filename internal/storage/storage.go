package storage

import (
	"context"
	"errors"
	"iter"
)

// ErrNotFound reports that no object exists behind a key. Callers use it to
// tell a missing object apart from a connectivity or credential failure,
// which matters when deciding whether a local file may be deleted.
var ErrNotFound = errors.New("object not found")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the archiver needs.
type ObjectStorage interface {
	// UploadFile stores the local file at localPath under key, overwriting
	// any existing object. Transient transport failures are retried
	// internally; a returned error is terminal for this attempt.
	UploadFile(ctx context.Context, localPath, key string) error

	// StatObject fetches metadata for key without fetching content. A
	// missing object yields an error wrapping ErrNotFound.
	StatObject(ctx context.Context, key string) (ObjectInfo, error)

	// ListObjects lazily enumerates the objects under prefix. The sequence
	// is finite and every call restarts the listing from the beginning.
	ListObjects(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error]
}
