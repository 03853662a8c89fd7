package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/arzan03/cloudvault/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ObjectStore holds file bytes. Presigned URLs are the content locators handed
// to share recipients.
type ObjectStore interface {
	Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	// Remove deletes an object. Removing a missing object is not an error.
	Remove(ctx context.Context, objectName string) error
	// PresignedURL issues a time-limited GET URL. A non-empty attachmentName makes
	// the response a download with that file name.
	PresignedURL(ctx context.Context, objectName string, ttl time.Duration, attachmentName string) (string, error)
}

type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and creates the bucket when it is missing.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig, log *zap.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		log.Warn("failed to check bucket existence", zap.String("bucket", cfg.Bucket), zap.Error(err))
	} else if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			log.Warn("failed to create bucket", zap.String("bucket", cfg.Bucket), zap.Error(err))
		} else {
			log.Info("created bucket", zap.String("bucket", cfg.Bucket))
		}
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (s *MinioStore) Remove(ctx context.Context, objectName string) error {
	return s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
}

func (s *MinioStore) PresignedURL(ctx context.Context, objectName string, ttl time.Duration, attachmentName string) (string, error) {
	params := url.Values{}
	if attachmentName != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", attachmentName))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, ttl, params)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}
