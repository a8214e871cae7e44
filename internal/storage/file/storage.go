package file

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"
)

// ErrBucketNotFound is returned by NewStorage when the default bucket does not exist.
var ErrBucketNotFound = errors.New("bucket not found")

// Storage provides read access to source images kept in an S3-compatible
// object store (e.g., MinIO).
type Storage struct {
	client        *minio.Client
	defaultBucket string
}

// NewStorage creates a new Storage instance connected to the specified MinIO server.
// The default bucket must already exist; the check is retried with the given strategy.
func NewStorage(ctx context.Context, endpoint, accessKey, secretKey, defaultBucket string, useSSL bool, strategy retry.Strategy) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	var exists bool
	err = retry.Do(func() error {
		var checkErr error
		exists, checkErr = client.BucketExists(ctx, defaultBucket)
		return checkErr
	}, strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, defaultBucket)
	}

	return &Storage{
		client:        client,
		defaultBucket: defaultBucket,
	}, nil
}

// Load opens the object and returns a reader along with the object size.
// An empty bucket selects the default bucket.
func (s *Storage) Load(ctx context.Context, bucket, object string) (io.ReadCloser, int64, error) {
	if bucket == "" {
		bucket = s.defaultBucket
	}

	obj, err := s.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load file: %w", err)
	}

	// GetObject is lazy; Stat surfaces missing objects and access errors.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, fmt.Errorf("failed to stat file: %w", err)
	}

	return obj, info.Size, nil
}
