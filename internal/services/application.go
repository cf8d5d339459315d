package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/smartkids/tutoring-api/internal/storage"
	"github.com/smartkids/tutoring-api/types"
)

// MaxAttachmentBytes bounds the size of an application attachment.
const MaxAttachmentBytes = 10 << 20

var attachmentFilenamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _.-]{0,127}$`)

var attachmentExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
	".txt":  {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// ApplicationInput is the form a prospective tutor submits.
type ApplicationInput struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject" validate:"required,max=100"`
	Message string `json:"message" validate:"max=5000"`
}

// Attachment is an uploaded file accompanying an application.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ObjectStore is the part of object storage the application flow needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ApplicationService records tutor applications.
type ApplicationService struct {
	repo    ApplicationRepository
	objects ObjectStore
	logger  *slog.Logger
}

// NewApplicationService constructs an ApplicationService. objects may be nil,
// in which case attachments are rejected.
func NewApplicationService(repo ApplicationRepository, objects ObjectStore, logger *slog.Logger) *ApplicationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApplicationService{repo: repo, objects: objects, logger: logger}
}

// Submit stores the application. The attachment, when present, is uploaded
// first and removed again if the application cannot be saved.
func (s *ApplicationService) Submit(ctx context.Context, in ApplicationInput, attachment *Attachment) (types.TutorApplication, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if err := validateInput(in); err != nil {
		return types.TutorApplication{}, err
	}

	application := types.TutorApplication{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	}

	var key string
	if attachment != nil {
		if s.objects == nil {
			return types.TutorApplication{}, newError(KindValidation, "attachments are not accepted")
		}
		name, err := validateAttachment(attachment)
		if err != nil {
			return types.TutorApplication{}, err
		}

		contentType := attachment.ContentType
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(attachment.Data)
		}

		key = path.Join("applications", uuid.NewString(), name)
		if err := s.objects.Put(ctx, key, bytes.NewReader(attachment.Data), int64(len(attachment.Data)), contentType); err != nil {
			return types.TutorApplication{}, wrapError(KindUnavailable, "failed to store attachment", err)
		}
		application.AttachmentKey = &key
	}

	created, err := s.repo.CreateApplication(ctx, application)
	if err != nil {
		if key != "" {
			if delErr := s.objects.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				s.logger.WarnContext(ctx, "remove orphaned attachment", "key", key, "error", delErr)
			}
		}
		return types.TutorApplication{}, translate(err, "")
	}
	return created, nil
}

func (s *ApplicationService) Get(ctx context.Context, id int64) (types.TutorApplication, error) {
	if id < 1 {
		return types.TutorApplication{}, newError(KindValidation, "invalid application id")
	}
	application, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return types.TutorApplication{}, translate(err, "application not found")
	}
	return application, nil
}

// OpenAttachment returns a reader for the application's attachment and the
// filename it was uploaded with. The caller closes the reader.
func (s *ApplicationService) OpenAttachment(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	application, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if application.AttachmentKey == nil {
		return nil, "", newError(KindNotFound, "application has no attachment")
	}
	if s.objects == nil {
		return nil, "", newError(KindUnavailable, "attachment storage is not configured")
	}

	key := *application.AttachmentKey
	body, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", wrapError(KindNotFound, "attachment not found", err)
		}
		return nil, "", wrapError(KindUnavailable, "failed to read attachment", err)
	}
	return body, path.Base(key), nil
}

// validateAttachment checks size and name and returns the base filename to
// store the object under.
func validateAttachment(attachment *Attachment) (string, error) {
	if len(attachment.Data) == 0 {
		return "", newError(KindValidation, "attachment is empty")
	}
	if len(attachment.Data) > MaxAttachmentBytes {
		return "", newError(KindValidation, "attachment is too large")
	}

	name, err := attachmentName(attachment.Filename)
	if err != nil {
		return "", wrapError(KindValidation, err.Error(), err)
	}
	if _, ok := attachmentExtensions[strings.ToLower(path.Ext(name))]; !ok {
		return "", newError(KindValidation, fmt.Sprintf("unsupported attachment type: %s", path.Ext(name)))
	}
	return name, nil
}

func attachmentName(filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	if strings.Contains(filename, `\`) {
		return "", errors.New("invalid attachment filename")
	}
	clean := path.Clean(filename)
	if clean == "." || clean == "/" {
		return "", errors.New("invalid attachment filename")
	}
	base := path.Base(clean)
	if !attachmentFilenamePattern.MatchString(base) {
		return "", fmt.Errorf("invalid attachment filename: %s", base)
	}
	return base, nil
}
