package objectstorage

import (
	"context"
	"fmt"
)

// Fake is an in-memory Downloader for unit tests of job functions that read
// uploaded files.
type Fake struct {
	Objects map[string][]byte // keyed by "bucket/key"
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{Objects: map[string][]byte{}}
}

// Put seeds an object for Download to return.
func (f *Fake) Put(bucket, key string, data []byte) {
	f.Objects[bucket+"/"+key] = data
}

func (f *Fake) Download(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := f.Objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", fmt.Sprintf("%s/%s", bucket, key), ErrObjectNotFound)
	}
	return data, nil
}
