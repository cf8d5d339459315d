package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/smartkids/tutoring-api/internal/services"
	"github.com/smartkids/tutoring-api/types"
)

// StudentHandler serves the student's view of their tutor.
type StudentHandler struct {
	enrollments *services.EnrollmentService
	officeHours *services.OfficeHoursService
	logger      *slog.Logger
}

func NewStudentHandler(enrollments *services.EnrollmentService, officeHours *services.OfficeHoursService, logger *slog.Logger) *StudentHandler {
	return &StudentHandler{
		enrollments: enrollments,
		officeHours: officeHours,
		logger:      logger,
	}
}

// StudentRouter registers student routes; all of them require a student token.
func StudentRouter(
	r chi.Router,
	enrollments *services.EnrollmentService,
	officeHours *services.OfficeHoursService,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	handler := NewStudentHandler(enrollments, officeHours, logger)

	r.Route("/me", func(r chi.Router) {
		r.Use(authMiddleware, RequireRole(types.RoleStudent))
		r.Get("/tutor", handler.AssignedTutor)
		r.Get("/office-hours", handler.OfficeHours)
	})
}

func (h *StudentHandler) AssignedTutor(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.enrollments.GetAssignedTutor(r.Context(), principal.Username)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *StudentHandler) OfficeHours(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	officeHours, err := h.officeHours.GetStudentOfficeHours(r.Context(), principal.Username)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, officeHours)
}
