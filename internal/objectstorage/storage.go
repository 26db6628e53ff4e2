// Package objectstorage implements the download(bucket, key) capability
// spec §6 gives every job function that reads an uploaded scores/counts
// file, grounded on the teacher's own GCS store in internal/storage/gcs.
package objectstorage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// ErrObjectNotFound is returned when the requested key does not exist in
// the bucket.
var ErrObjectNotFound = errors.New("objectstorage: object not found")

// Downloader fetches an object's bytes by bucket and key. Job functions take
// this interface, not *Store directly, so unit tests can substitute an
// in-memory fake.
type Downloader interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// Store is a GCS-backed Downloader.
type Store struct {
	client *storage.Client
}

// NewStore creates a GCS client from the ambient credentials (e.g.
// GOOGLE_APPLICATION_CREDENTIALS) and wraps it.
func NewStore(ctx context.Context) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("objectstorage: failed to create GCS client: %w", err)
	}
	return &Store{client: client}, nil
}

// Download streams bucket/key fully into memory. Score/count files are
// bounded by upload-time validation upstream of the worker, so full
// buffering is acceptable here.
func (s *Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("objectstorage: open reader for %s/%s: %w", bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("objectstorage: read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Close releases the underlying client's connections.
func (s *Store) Close() error {
	return s.client.Close()
}
