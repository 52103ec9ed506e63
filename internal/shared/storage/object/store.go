package object

import (
	"context"
	"io"
)

// Object describes a stored upload.
type Object struct {
	Key      string
	Size     int64
	MimeType string
}

// Store saves and retrieves binary objects such as uploaded CV originals and
// their extracted text.
type Store interface {
	// Save writes r under the owner's namespace with a unique key derived
	// from fileName and sniffs its content type.
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (Object, error)
	// Put writes r at exactly key.
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DerivedKey names a companion object stored next to key.
func DerivedKey(key, suffix string) string {
	return key + "." + suffix
}
