package service

import (
	"context"
	"testing"

	"github.com/fewie27/ultimate/backend/config"
)

func TestNewArchiveService(t *testing.T) {
	cfg := &config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "documents",
		UseSSL:    false,
	}

	svc, err := NewArchiveService(cfg)
	// Client creation does not open a connection; it only validates the endpoint
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if svc == nil {
		t.Fatal("Expected non-nil service")
	}
}

func TestArchiveObjectName(t *testing.T) {
	svc := &ArchiveService{bucket: "documents"}

	tests := []struct {
		name       string
		analysisID string
		filename   string
		expected   string
	}{
		{
			name:       "plain filename",
			analysisID: "abc-123",
			filename:   "mietvertrag.txt",
			expected:   "abc-123/mietvertrag.txt",
		},
		{
			name:       "empty filename falls back to default",
			analysisID: "abc-123",
			filename:   "",
			expected:   "abc-123/document.txt",
		},
		{
			name:       "path separators are flattened",
			analysisID: "abc-123",
			filename:   "../etc/passwd",
			expected:   "abc-123/.._etc_passwd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := svc.ObjectName(tt.analysisID, tt.filename)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestArchiveStoreTextWithCancelledContext(t *testing.T) {
	cfg := &config.MinioConfig{
		Endpoint:   "localhost:9000",
		AccessKey:  "test",
		SecretKey:  "test",
		Bucket:     "documents",
		UseSSL:     false,
		ExpireDays: 7,
	}

	svc, err := NewArchiveService(cfg)
	if err != nil {
		t.Skip("Could not create archive service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.StoreText(ctx, "abc-123", "test.txt", "Vertragstext"); err == nil {
		t.Log("StoreText with cancelled context - error handling depends on client implementation")
	}
}

func TestArchiveEnsureBucket(t *testing.T) {
	// Note: This requires actual MinIO connection or proper mocking
	t.Skip("MinIO operations require actual MinIO client mock")
}

func TestArchiveDelete(t *testing.T) {
	// Note: This requires actual MinIO connection or proper mocking
	t.Skip("MinIO operations require actual MinIO client mock")
}

func TestArchiveGetPresignedURL(t *testing.T) {
	// Note: This requires actual MinIO connection or proper mocking
	t.Skip("MinIO operations require actual MinIO client mock")
}
