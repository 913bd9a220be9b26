// Package storage provides object storage for raw and processed listening
// history data. Objects are addressed by bucket and key; raw fetch results
// live under the raw/ prefix and partitioned records under processed/.
package storage

import "context"

// Content type applied to every object the pipeline writes.
const ContentTypeJSON = "application/json"

// ObjectStore persists and retrieves immutable JSON objects.
type ObjectStore interface {
	// Put writes an object, overwriting any existing object at the key.
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error

	// Get reads an object. Returns a not-found fault when the object
	// does not exist.
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}
