package services

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/smartkids/tutoring-api/internal/store"
	"github.com/smartkids/tutoring-api/types"
)

// SaveOfficeHoursInput describes one weekly availability window.
type SaveOfficeHoursInput struct {
	TutorUsername string   `json:"tutor_username" validate:"required,max=64"`
	Days          []string `json:"days" validate:"required,min=1,max=7,dive,weekday"`
	StartTime     string   `json:"start_time" validate:"required,clock"`
	EndTime       string   `json:"end_time" validate:"required,clock"`
	Timezone      string   `json:"timezone" validate:"required,timezone"`
}

func (in *SaveOfficeHoursInput) normalize() {
	in.TutorUsername = strings.TrimSpace(in.TutorUsername)
	in.Days = normalizeDays(in.Days)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	in.Timezone = strings.TrimSpace(in.Timezone)
}

// OfficeHoursService manages tutors' weekly office hours.
type OfficeHoursService struct {
	tx          TxRunner
	officeHours OfficeHourRepository
	students    StudentRepository
	tutors      TutorRepository
	logger      *slog.Logger
	newID       func() string
}

func NewOfficeHoursService(
	tx TxRunner,
	officeHours OfficeHourRepository,
	students StudentRepository,
	tutors TutorRepository,
	logger *slog.Logger,
) *OfficeHoursService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OfficeHoursService{
		tx:          tx,
		officeHours: officeHours,
		students:    students,
		tutors:      tutors,
		logger:      logger,
		newID:       uuid.NewString,
	}
}

// SaveOfficeHours stores the window, replacing any record of the same tutor
// with the same start time, end time and timezone.
func (s *OfficeHoursService) SaveOfficeHours(ctx context.Context, in SaveOfficeHoursInput) (types.OfficeHour, error) {
	in.normalize()
	if err := validateInput(in); err != nil {
		return types.OfficeHour{}, err
	}
	// HH:MM compares correctly as a string.
	if in.StartTime >= in.EndTime {
		return types.OfficeHour{}, newError(KindValidation, "start_time must be before end_time")
	}

	var saved types.OfficeHour
	err := s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		tutor, err := tx.GetTutorForUpdate(ctx, in.TutorUsername)
		if err != nil {
			return translate(err, "tutor not found")
		}

		replaced, err := tx.DeleteOfficeHoursBySlot(ctx, tutor.Username, in.StartTime, in.EndTime, in.Timezone)
		if err != nil {
			return err
		}
		if replaced > 0 {
			s.logger.DebugContext(ctx, "replacing office hours",
				"tutor", tutor.Username, "start", in.StartTime, "end", in.EndTime, "replaced", replaced)
		}

		saved, err = tx.CreateOfficeHour(ctx, types.OfficeHour{
			ID:            s.newID(),
			TutorUsername: tutor.Username,
			Days:          in.Days,
			StartTime:     in.StartTime,
			EndTime:       in.EndTime,
			Timezone:      in.Timezone,
		})
		return err
	})
	if err != nil {
		return types.OfficeHour{}, translate(err, "tutor not found")
	}
	return saved, nil
}

// GetOfficeHours lists the tutor's office hours by start time. An unknown
// tutor has no office hours.
func (s *OfficeHoursService) GetOfficeHours(ctx context.Context, tutorUsername string) ([]types.OfficeHour, error) {
	tutorUsername = strings.TrimSpace(tutorUsername)
	if tutorUsername == "" {
		return []types.OfficeHour{}, nil
	}
	officeHours, err := s.officeHours.ListOfficeHours(ctx, tutorUsername)
	if err != nil {
		return nil, translate(err, "")
	}
	return officeHours, nil
}

// RemoveOfficeHour deletes the record if tutorUsername owns it.
func (s *OfficeHoursService) RemoveOfficeHour(ctx context.Context, id, tutorUsername string) error {
	id = strings.TrimSpace(id)
	tutorUsername = strings.TrimSpace(tutorUsername)
	if id == "" || tutorUsername == "" {
		return newError(KindValidation, "office hour id and tutor are required")
	}

	officeHour, err := s.officeHours.GetOfficeHour(ctx, id)
	if err != nil {
		return translate(err, "office hour not found")
	}
	if officeHour.TutorUsername != tutorUsername {
		return newError(KindForbidden, "office hour belongs to another tutor")
	}
	if err := s.officeHours.DeleteOfficeHour(ctx, id, tutorUsername); err != nil {
		return translate(err, "office hour not found")
	}
	return nil
}

// GetStudentOfficeHours lists the office hours of the student's tutor,
// ordered by first weekday and then start time.
func (s *OfficeHoursService) GetStudentOfficeHours(ctx context.Context, studentUsername string) ([]types.OfficeHour, error) {
	tutor, err := assignedTutor(ctx, s.students, s.tutors, studentUsername)
	if err != nil {
		return nil, err
	}
	officeHours, err := s.officeHours.ListOfficeHours(ctx, tutor.Username)
	if err != nil {
		return nil, translate(err, "")
	}

	slices.SortStableFunc(officeHours, func(a, b types.OfficeHour) int {
		if c := cmp.Compare(a.FirstDayIndex(), b.FirstDayIndex()); c != 0 {
			return c
		}
		return cmp.Compare(a.StartTime, b.StartTime)
	})
	return officeHours, nil
}
