// Package storage stores item images in a MinIO (S3-compatible) bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// Config holds the MinIO connection settings
type Config struct {
	Endpoint       string
	PublicEndpoint string // endpoint used in returned URLs; falls back to Endpoint
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

// MinIOStorage uploads and serves item images
type MinIOStorage struct {
	client         *minio.Client
	bucket         string
	publicEndpoint string
	useSSL         bool
}

// NewMinIOStorage connects to MinIO and ensures the bucket exists with a
// public-read policy so image URLs can be embedded directly by clients.
func NewMinIOStorage(ctx context.Context, cfg Config) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		policy := fmt.Sprintf(`{
			"Version": "2012-10-17",
			"Statement": [{
				"Effect": "Allow",
				"Principal": {"AWS": ["*"]},
				"Action": ["s3:GetObject"],
				"Resource": ["arn:aws:s3:::%s/*"]
			}]
		}`, cfg.Bucket)
		if err := client.SetBucketPolicy(ctx, cfg.Bucket, policy); err != nil {
			return nil, fmt.Errorf("failed to set bucket policy: %w", err)
		}
		log.Info().Str("bucket", cfg.Bucket).Msg("created image bucket")
	}

	publicEndpoint := cfg.PublicEndpoint
	if publicEndpoint == "" {
		publicEndpoint = cfg.Endpoint
	}

	return &MinIOStorage{
		client:         client,
		bucket:         cfg.Bucket,
		publicEndpoint: publicEndpoint,
		useSSL:         cfg.UseSSL,
	}, nil
}

// UploadImage stores an image under a date-partitioned key and returns its
// public URL. The original filename only contributes its extension.
func (s *MinIOStorage) UploadImage(ctx context.Context, reader io.Reader, size int64, contentType, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".jpg"
	}
	objectName := fmt.Sprintf("items/%s/%s%s", time.Now().Format("2006-01-02"), uuid.New().String(), ext)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return s.objectURL(objectName), nil
}

// DeleteImage removes a previously uploaded image given its public URL.
// Unknown URLs are ignored.
func (s *MinIOStorage) DeleteImage(ctx context.Context, imageURL string) error {
	objectName, ok := s.objectNameFromURL(imageURL)
	if !ok {
		return nil
	}
	return s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
}

// HealthCheck verifies connectivity to the bucket
func (s *MinIOStorage) HealthCheck(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

func (s *MinIOStorage) objectURL(objectName string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.publicEndpoint, s.bucket, objectName)
}

func (s *MinIOStorage) objectNameFromURL(imageURL string) (string, bool) {
	marker := "/" + s.bucket + "/"
	idx := strings.Index(imageURL, marker)
	if idx == -1 {
		return "", false
	}
	return imageURL[idx+len(marker):], true
}
