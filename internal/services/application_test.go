package services_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/smartkids/tutoring-api/internal/services"
	"github.com/smartkids/tutoring-api/internal/storage"
	"github.com/smartkids/tutoring-api/internal/testutil/memstore"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjects) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func validApplication() services.ApplicationInput {
	return services.ApplicationInput{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Subject: "Chemistry",
		Message: "Ten years of teaching experience.",
	}
}

func TestSubmitApplicationWithAttachment(t *testing.T) {
	st := memstore.New()
	objects := newMemObjects()
	svc := services.NewApplicationService(st, objects, discardLogger())

	created, err := svc.Submit(context.Background(), validApplication(), &services.Attachment{
		Filename: "../cv.pdf",
		Data:     []byte("%PDF-1.4 resume"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if created.ID == 0 || created.AttachmentKey == nil {
		t.Fatalf("expected id and attachment key, got %+v", created)
	}
	key := *created.AttachmentKey
	if !strings.HasPrefix(key, "applications/") || !strings.HasSuffix(key, "/cv.pdf") {
		t.Fatalf("unexpected key %q", key)
	}
	if !bytes.Equal(objects.objects[key], []byte("%PDF-1.4 resume")) {
		t.Fatalf("attachment not stored under %q", key)
	}
	if objects.types[key] != "application/pdf" {
		t.Fatalf("expected detected content type, got %q", objects.types[key])
	}

	got, err := svc.Get(context.Background(), created.ID)
	if err != nil || got.Email != "jane@example.com" {
		t.Fatalf("get: %+v, %v", got, err)
	}
}

func TestSubmitApplicationWithoutAttachment(t *testing.T) {
	st := memstore.New()
	svc := services.NewApplicationService(st, nil, discardLogger())

	created, err := svc.Submit(context.Background(), validApplication(), nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if created.AttachmentKey != nil {
		t.Fatalf("expected no attachment key")
	}

	_, err = svc.Submit(context.Background(), validApplication(), &services.Attachment{Filename: "cv.pdf", Data: []byte("x")})
	assertKind(t, err, services.KindValidation)
}

func TestSubmitApplicationValidation(t *testing.T) {
	st := memstore.New()
	svc := services.NewApplicationService(st, newMemObjects(), discardLogger())

	in := validApplication()
	in.Email = "nope"
	_, err := svc.Submit(context.Background(), in, nil)
	assertKind(t, err, services.KindValidation)

	attachments := []*services.Attachment{
		{Filename: "cv.pdf"},
		{Filename: "cv.exe", Data: []byte("MZ")},
		{Filename: `..\cv.pdf`, Data: []byte("x")},
		{Filename: ".hidden.pdf", Data: []byte("x")},
		{Filename: "big.pdf", Data: make([]byte, services.MaxAttachmentBytes+1)},
	}
	for _, attachment := range attachments {
		_, err := svc.Submit(context.Background(), validApplication(), attachment)
		assertKind(t, err, services.KindValidation)
	}
}

func TestSubmitApplicationCleansUpOnStoreFailure(t *testing.T) {
	st := memstore.New()
	objects := newMemObjects()
	svc := services.NewApplicationService(st, objects, discardLogger())
	st.FailNext("CreateApplication", errors.New("insert failed"))

	_, err := svc.Submit(context.Background(), validApplication(), &services.Attachment{Filename: "cv.txt", Data: []byte("hello")})
	assertKind(t, err, services.KindInternal)
	if len(objects.objects) != 0 {
		t.Fatalf("expected orphaned attachment to be removed, have %v", objects.objects)
	}
}

func TestSubmitApplicationStorageFailure(t *testing.T) {
	st := memstore.New()
	objects := newMemObjects()
	objects.putErr = errors.New("bucket unavailable")
	svc := services.NewApplicationService(st, objects, discardLogger())

	_, err := svc.Submit(context.Background(), validApplication(), &services.Attachment{Filename: "cv.txt", Data: []byte("hello")})
	assertKind(t, err, services.KindUnavailable)
}

func TestGetApplicationNotFound(t *testing.T) {
	svc := services.NewApplicationService(memstore.New(), nil, discardLogger())

	_, err := svc.Get(context.Background(), 42)
	assertKind(t, err, services.KindNotFound)
	_, err = svc.Get(context.Background(), 0)
	assertKind(t, err, services.KindValidation)
}

func TestOpenAttachment(t *testing.T) {
	st := memstore.New()
	objects := newMemObjects()
	svc := services.NewApplicationService(st, objects, discardLogger())

	withFile, err := svc.Submit(context.Background(), validApplication(), &services.Attachment{Filename: "notes.txt", Data: []byte("hello")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	body, name, err := svc.OpenAttachment(context.Background(), withFile.ID)
	if err != nil {
		t.Fatalf("open attachment: %v", err)
	}
	data, _ := io.ReadAll(body)
	_ = body.Close()
	if name != "notes.txt" || string(data) != "hello" {
		t.Fatalf("unexpected attachment %q: %q", name, data)
	}

	withoutFile, err := svc.Submit(context.Background(), validApplication(), nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, _, err = svc.OpenAttachment(context.Background(), withoutFile.ID)
	assertKind(t, err, services.KindNotFound)

	objects.mu.Lock()
	delete(objects.objects, *withFile.AttachmentKey)
	objects.mu.Unlock()
	_, _, err = svc.OpenAttachment(context.Background(), withFile.ID)
	assertKind(t, err, services.KindNotFound)
}
