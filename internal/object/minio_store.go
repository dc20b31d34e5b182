package object

import (
	"context"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"

	"securedrive/internal/storage"
)

// MinIOStore adapts minio.Client to the objectStore interface used by the
// service. The backing bucket is ensured lazily before each operation until
// one ensure succeeds; failures are retried on the next call.
type MinIOStore struct {
	client *minio.Client
	bucket string
	region string

	ensureMu sync.Mutex
	ensured  bool
}

// NewMinIOStore constructs an adapter bound to one bucket.
func NewMinIOStore(client *minio.Client, bucket, region string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket, region: region}
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.ensured {
		return nil
	}
	if err := storage.EnsureBucket(ctx, s.client, s.bucket, s.region); err != nil {
		return err
	}
	s.ensured = true
	return nil
}

// Put uploads exactly size bytes from reader under key. MinIO commits the
// object atomically; a failed upload leaves nothing retrievable at key.
func (s *MinIOStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	return err
}

// GetStream opens a forward-only stream for key. The stream is lazy; backend
// errors surface on the first Read. The caller must Close it on every exit
// path to release the underlying connection.
func (s *MinIOStore) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Delete removes the object under key. Missing keys are not an error.
func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
