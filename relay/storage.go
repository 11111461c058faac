package relay

import (
	"bytes"
	"context"

	"github.com/minio/minio-go/v7"
)

// ObjectStore persists the finished recording bytes.
type ObjectStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) error
}

type minioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(client *minio.Client, bucket string) ObjectStore {
	return &minioStore{
		client: client,
		bucket: bucket,
	}
}

func (s *minioStore) Put(ctx context.Context, objectName string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}
