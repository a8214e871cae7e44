package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// objectStorage is the read side of the object store holding s3:// sources.
type objectStorage interface {
	Load(ctx context.Context, bucket, object string) (io.ReadCloser, int64, error)
}

// Object fetches s3://bucket/key sources from an object store.
// s3:///key reads from the store's default bucket.
type Object struct {
	storage      objectStorage
	timeout      time.Duration
	maxBodyBytes int64
}

// NewObject creates an object store fetcher. Zero limits select defaults.
func NewObject(s objectStorage, timeout time.Duration, maxBodyBytes int64) *Object {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Object{storage: s, timeout: timeout, maxBodyBytes: maxBodyBytes}
}

// Fetch implements Fetcher.
func (o *Object) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", ErrFetch, err)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return nil, fmt.Errorf("%w: missing object key in %q", ErrFetch, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	r, size, err := o.storage.Load(ctx, u.Host, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer r.Close()

	if size > o.maxBodyBytes {
		return nil, fmt.Errorf("%w: object exceeds %d bytes", ErrFetch, o.maxBodyBytes)
	}

	data, err := io.ReadAll(io.LimitReader(r, o.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read object: %v", ErrFetch, err)
	}
	if int64(len(data)) > o.maxBodyBytes {
		return nil, fmt.Errorf("%w: object exceeds %d bytes", ErrFetch, o.maxBodyBytes)
	}

	return data, nil
}
