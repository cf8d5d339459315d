package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/smartkids/tutoring-api/internal/mq"
	"github.com/smartkids/tutoring-api/internal/storage"
)

type fakeObjects struct{ closed int }

func (f *fakeObjects) EnsureBucket(ctx context.Context) error { return nil }
func (f *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return nil
}
func (f *fakeObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}
func (f *fakeObjects) Delete(ctx context.Context, key string) error { return nil }
func (f *fakeObjects) Bucket() string                               { return "attachments" }
func (f *fakeObjects) Close() error {
	f.closed++
	return errors.New("already closed")
}

type fakeBroker struct{ closed int }

func (f *fakeBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return "", nil
}
func (f *fakeBroker) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	return nil
}
func (f *fakeBroker) Close() error {
	f.closed++
	return nil
}

func TestShutdownClosesOwnedClients(t *testing.T) {
	objects := &fakeObjects{}
	broker := &fakeBroker{}
	srv := &Server{
		httpServer: &http.Server{},
		storage:    storage.NewStorage(objects),
		mq:         mq.New(broker),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if objects.closed != 1 {
		t.Fatalf("expected storage to be closed once, got %d", objects.closed)
	}
	if broker.closed != 1 {
		t.Fatalf("expected broker to be closed once, got %d", broker.closed)
	}
}

func TestShutdownWithoutOptionalClients(t *testing.T) {
	srv := &Server{
		httpServer: &http.Server{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
