package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
	"github.com/amolrairikar/spotify-listening-history-app/internal/logging"
)

const stageStorage = "storage"

// FSStore is a filesystem-backed ObjectStore. Each bucket maps to a
// directory under the root, and slashes in keys become subdirectories, so
// the partition layout on disk mirrors the object key layout exactly.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at the given directory.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &FSStore{root: abs}, nil
}

// Root returns the absolute root directory of the store.
func (s *FSStore) Root() string {
	return s.root
}

// BucketPath returns the directory backing the named bucket.
func (s *FSStore) BucketPath(bucket string) string {
	return filepath.Join(s.root, bucket)
}

// Put writes an object via a temp file and rename, so readers never observe
// a partially written object. The content type is accepted for interface
// parity; the filesystem has nowhere to record it.
func (s *FSStore) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return faults.Transient(stageStorage, fmt.Errorf("creating object directory: %w", err))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return faults.Transient(stageStorage, fmt.Errorf("creating temp object: %w", err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return faults.Transient(stageStorage, fmt.Errorf("writing object: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return faults.Transient(stageStorage, fmt.Errorf("closing object: %w", err))
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return faults.Transient(stageStorage, fmt.Errorf("publishing object: %w", err))
	}

	logging.Info().
		Str("bucket", bucket).
		Str("key", key).
		Int("bytes", len(body)).
		Msg("Uploaded object")
	return nil
}

// Get reads an object.
func (s *FSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, faults.NotFound(stageStorage, fmt.Errorf("object %s/%s does not exist", bucket, key))
	}
	if err != nil {
		return nil, faults.Transient(stageStorage, fmt.Errorf("reading object: %w", err))
	}
	return body, nil
}

// objectPath maps a bucket and key to a filesystem path, rejecting keys that
// would escape the bucket directory.
func (s *FSStore) objectPath(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", faults.Validation(stageStorage, fmt.Errorf("bucket and key must not be empty"))
	}

	bucketDir := filepath.Join(s.root, bucket)
	path := filepath.Join(bucketDir, filepath.FromSlash(key))
	if path != bucketDir && !strings.HasPrefix(path, bucketDir+string(filepath.Separator)) {
		return "", faults.Validation(stageStorage, fmt.Errorf("key %q escapes bucket", key))
	}
	return path, nil
}
