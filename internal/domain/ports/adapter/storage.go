package adapter

import "context"

// ObjectStorage is the hex port for the public image bucket.
type ObjectStorage interface {
	// Put stores the object under key with the given content type and
	// returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Remove deletes the object under key. Removing a missing key is not an
	// error.
	Remove(ctx context.Context, key string) error
	// KeyFromURL maps a public URL produced by Put back to its object key.
	// ErrInvalidArgument when the URL does not reference this bucket.
	KeyFromURL(url string) (string, error)
}
