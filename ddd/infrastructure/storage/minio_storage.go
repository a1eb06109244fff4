package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"

	"insight-service/ddd/domain/gateway"
	"insight-service/internal/resource"
	"insight-service/pkg/assert"
)

var (
	storageOnce      sync.Once
	singletonStorage gateway.StorageGateway
)

// MinioStorage 原始上传媒体的对象存储适配器
type MinioStorage struct {
	client     *minio.Client
	bucketName string
}

func DefaultStorageGateway() gateway.StorageGateway {
	assert.NotCircular()
	storageOnce.Do(func() {
		r := resource.DefaultMinioResource()
		singletonStorage = &MinioStorage{
			client:     r.GetClient(),
			bucketName: r.GetBucketName(),
		}
	})
	assert.NotNil(singletonStorage)
	return singletonStorage
}

func NewMinioStorage(client *minio.Client, bucketName string) *MinioStorage {
	return &MinioStorage{client: client, bucketName: bucketName}
}

func (s *MinioStorage) UploadSourceMedia(ctx context.Context, localPath, objectKey, contentType string) (string, error) {
	opts := minio.PutObjectOptions{}
	if contentType != "" {
		opts.ContentType = contentType
	}
	if _, err := s.client.FPutObject(ctx, s.bucketName, objectKey, localPath, opts); err != nil {
		return "", fmt.Errorf("upload %s to bucket %s: %w", objectKey, s.bucketName, err)
	}
	return objectKey, nil
}

func (s *MinioStorage) DownloadFile(ctx context.Context, objectKey, localPath string) error {
	if err := s.client.FGetObject(ctx, s.bucketName, objectKey, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s from bucket %s: %w", objectKey, s.bucketName, err)
	}
	return nil
}

func (s *MinioStorage) RemoveObject(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s from bucket %s: %w", objectKey, s.bucketName, err)
	}
	return nil
}
