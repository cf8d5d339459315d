package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/smartkids/tutoring-api/internal/services"
)

const (
	maxMultipartMemory   = 16 << 20
	formFieldName        = "name"
	formFieldEmail       = "email"
	formFieldSubject     = "subject"
	formFieldMessage     = "message"
	formFieldAttachment  = "attachment"
	multipartBodyPadding = 1 << 20
)

// ApplicationHandler accepts tutor applications.
type ApplicationHandler struct {
	applications *services.ApplicationService
	logger       *slog.Logger
}

func NewApplicationHandler(applications *services.ApplicationService, logger *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{applications: applications, logger: logger}
}

// ApplicationRouter registers tutor application routes on the given router.
func ApplicationRouter(r chi.Router, applications *services.ApplicationService, logger *slog.Logger) {
	handler := NewApplicationHandler(applications, logger)

	r.Post("/", handler.Submit)
	r.Get("/{applicationID}", handler.Get)
	r.Get("/{applicationID}/attachment", handler.Attachment)
}

// Submit accepts either a multipart form with an optional attachment or a
// JSON body without one.
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var (
		input      services.ApplicationInput
		attachment *services.Attachment
		err        error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		input, attachment, err = parseApplicationForm(w, r)
	} else {
		err = decodeJSON(w, r, &input)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.applications.Submit(r.Context(), input, attachment)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "applicationID"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	application, err := h.applications.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, application)
}

// Attachment streams the stored attachment back as a download.
func (h *ApplicationHandler) Attachment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "applicationID"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	body, filename, err := h.applications.OpenAttachment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "stream attachment", "application_id", id, "error", err)
	}
}

func parseApplicationForm(w http.ResponseWriter, r *http.Request) (services.ApplicationInput, *services.Attachment, error) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAttachmentBytes+multipartBodyPadding)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.ApplicationInput{}, nil, errors.New("attachment is too large")
		}
		return services.ApplicationInput{}, nil, errors.New("invalid multipart form")
	}

	input := services.ApplicationInput{
		Name:    r.FormValue(formFieldName),
		Email:   r.FormValue(formFieldEmail),
		Subject: r.FormValue(formFieldSubject),
		Message: r.FormValue(formFieldMessage),
	}

	attachment, err := parseAttachment(r.MultipartForm)
	if err != nil {
		return services.ApplicationInput{}, nil, err
	}
	return input, attachment, nil
}

func parseAttachment(form *multipart.Form) (*services.Attachment, error) {
	if form == nil {
		return nil, errors.New("missing form data")
	}

	files := form.File[formFieldAttachment]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one attachment is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}

	data, err := readFileLimited(file, services.MaxAttachmentBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	return &services.Attachment{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("attachment is too large")
	}
	return data, nil
}
