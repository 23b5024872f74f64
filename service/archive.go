package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fewie27/ultimate/backend/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveService keeps the raw text of every submitted document in MinIO so
// it can be re-read after the in-memory analysis has been evicted.
type ArchiveService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewArchiveService(cfg *config.MinioConfig) (*ArchiveService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ArchiveService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ArchiveService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// ObjectName returns the archive object name for an analysis. Objects are
// keyed by analysis ID so deleting an analysis can find its archived text.
func (s *ArchiveService) ObjectName(analysisID, filename string) string {
	if filename == "" {
		filename = "document.txt"
	}
	// Flatten path separators so user-supplied filenames stay below the ID prefix
	filename = strings.ReplaceAll(filename, "/", "_")
	return fmt.Sprintf("%s/%s", analysisID, filename)
}

// StoreText uploads the submitted document text as a plain-text object.
func (s *ArchiveService) StoreText(ctx context.Context, analysisID, filename, text string) error {
	objectName := s.ObjectName(analysisID, filename)
	reader := strings.NewReader(text)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return fmt.Errorf("failed to archive text: %w", err)
	}

	return nil
}

// GetPresignedURL generates a presigned URL for the archived text with expiration
func (s *ArchiveService) GetPresignedURL(ctx context.Context, analysisID, filename string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, s.ObjectName(analysisID, filename), expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// Delete removes the archived text for an analysis
func (s *ArchiveService) Delete(ctx context.Context, analysisID, filename string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.ObjectName(analysisID, filename), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete archived text: %w", err)
	}

	return nil
}
