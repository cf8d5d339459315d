package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/smartkids/tutoring-api/config"
)

func TestOpenDisabled(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s != nil {
		t.Fatalf("expected nil storage when backend is empty")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "s3"})
	if err == nil || !strings.Contains(err.Error(), "unknown storage backend") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewMinioClientValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.MinioConfig
		want string
	}{
		{"endpoint", config.MinioConfig{}, "endpoint"},
		{"credentials", config.MinioConfig{Endpoint: "localhost:9000"}, "access key"},
		{"bucket", config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, "bucket"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMinioClient(tc.cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}
}

func TestGCSRequiresBucket(t *testing.T) {
	if _, err := NewGCSClient(context.Background(), config.GCSConfig{}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

type closeRecorder struct {
	closed int
	err    error
}

func (c *closeRecorder) EnsureBucket(ctx context.Context) error { return nil }
func (c *closeRecorder) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return nil
}
func (c *closeRecorder) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, ErrObjectNotFound
}
func (c *closeRecorder) Delete(ctx context.Context, key string) error { return nil }
func (c *closeRecorder) Bucket() string                               { return "attachments" }
func (c *closeRecorder) Close() error {
	c.closed++
	return c.err
}

func TestStorageCloseReleasesBackend(t *testing.T) {
	backend := &closeRecorder{err: errors.New("close failed")}
	s := NewStorage(backend)

	if err := s.Close(); err == nil || err.Error() != "close failed" {
		t.Fatalf("expected backend close error, got %v", err)
	}
	if backend.closed != 1 {
		t.Fatalf("expected backend to be closed once, got %d", backend.closed)
	}
}

func TestMinioCloseIsNoop(t *testing.T) {
	client, err := NewMinioClient(config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "attachments",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
