package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/smartkids/tutoring-api/internal/services"
	"github.com/smartkids/tutoring-api/types"
)

// TutorHandler serves the tutor-facing roster and office-hour endpoints.
type TutorHandler struct {
	enrollments *services.EnrollmentService
	officeHours *services.OfficeHoursService
	logger      *slog.Logger
}

func NewTutorHandler(enrollments *services.EnrollmentService, officeHours *services.OfficeHoursService, logger *slog.Logger) *TutorHandler {
	return &TutorHandler{
		enrollments: enrollments,
		officeHours: officeHours,
		logger:      logger,
	}
}

// TutorRouter registers tutor routes on the given router. Routes under /me
// require a tutor token.
func TutorRouter(
	r chi.Router,
	enrollments *services.EnrollmentService,
	officeHours *services.OfficeHoursService,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	handler := NewTutorHandler(enrollments, officeHours, logger)

	r.Route("/me", func(r chi.Router) {
		r.Use(authMiddleware, RequireRole(types.RoleTutor))

		r.Get("/students", handler.Roster)
		r.Post("/students", handler.Enroll)
		r.Get("/students/search", handler.SearchStudents)
		r.Delete("/students/{studentUsername}", handler.RemoveEnrollment)
		r.Get("/enrollments", handler.History)

		r.Get("/office-hours", handler.MyOfficeHours)
		r.Post("/office-hours", handler.SaveOfficeHours)
		r.Delete("/office-hours/{officeHourID}", handler.RemoveOfficeHour)
	})
	// Static /me wins over {tutorUsername}; usernames are at least three
	// characters, so no tutor can be called "me".
	r.Get("/{tutorUsername}/office-hours", handler.OfficeHours)
}

type EnrollRequest struct {
	StudentUsername string `json:"student_username"`
}

type SaveOfficeHoursRequest struct {
	Days      []string `json:"days"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Timezone  string   `json:"timezone"`
}

func (h *TutorHandler) Roster(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	roster, err := h.enrollments.GetRoster(r.Context(), principal.Username)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (h *TutorHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req EnrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	enrollment, err := h.enrollments.Enroll(r.Context(), services.EnrollInput{
		TutorUsername:   principal.Username,
		StudentUsername: req.StudentUsername,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, enrollment)
}

func (h *TutorHandler) SearchStudents(w http.ResponseWriter, r *http.Request) {
	matches, err := h.enrollments.SearchStudents(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *TutorHandler) RemoveEnrollment(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	err := h.enrollments.RemoveEnrollment(r.Context(), services.RemoveEnrollmentInput{
		TutorUsername:   principal.Username,
		StudentUsername: chi.URLParam(r, "studentUsername"),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TutorHandler) History(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	enrollments, err := h.enrollments.History(r.Context(), principal.Username)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollments)
}

func (h *TutorHandler) MyOfficeHours(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	h.writeOfficeHours(w, r, principal.Username)
}

// OfficeHours lists any tutor's office hours without authentication.
func (h *TutorHandler) OfficeHours(w http.ResponseWriter, r *http.Request) {
	h.writeOfficeHours(w, r, chi.URLParam(r, "tutorUsername"))
}

func (h *TutorHandler) writeOfficeHours(w http.ResponseWriter, r *http.Request, tutor string) {
	officeHours, err := h.officeHours.GetOfficeHours(r.Context(), tutor)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, officeHours)
}

func (h *TutorHandler) SaveOfficeHours(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req SaveOfficeHoursRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.officeHours.SaveOfficeHours(r.Context(), services.SaveOfficeHoursInput{
		TutorUsername: principal.Username,
		Days:          req.Days,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Timezone:      req.Timezone,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *TutorHandler) RemoveOfficeHour(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	if err := h.officeHours.RemoveOfficeHour(r.Context(), chi.URLParam(r, "officeHourID"), principal.Username); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TutorHandler) principal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return Principal{}, false
	}
	return principal, true
}
