package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/smartkids/tutoring-api/internal/store"
	"github.com/smartkids/tutoring-api/types"
)

const maxSearchResults = 20

// EnrollInput identifies the tutor/student pair of an enrollment change.
type EnrollInput struct {
	TutorUsername   string `json:"tutor_username" validate:"required,max=64"`
	StudentUsername string `json:"student_username" validate:"required,max=64"`
}

func (in *EnrollInput) normalize() {
	in.TutorUsername = strings.TrimSpace(in.TutorUsername)
	in.StudentUsername = strings.TrimSpace(in.StudentUsername)
}

// RemoveEnrollmentInput identifies the pairing to end.
type RemoveEnrollmentInput = EnrollInput

// Publisher delivers messages to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// EnrollmentService maintains the student/tutor relationship. The tutor
// roster, the student's tutor reference and the enrollment record always
// change together.
type EnrollmentService struct {
	tx          TxRunner
	students    StudentRepository
	tutors      TutorRepository
	enrollments EnrollmentRepository
	logger      *slog.Logger

	publisher Publisher
	channel   string

	now func() time.Time
}

func NewEnrollmentService(
	tx TxRunner,
	students StudentRepository,
	tutors TutorRepository,
	enrollments EnrollmentRepository,
	logger *slog.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrollmentService{
		tx:          tx,
		students:    students,
		tutors:      tutors,
		enrollments: enrollments,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithEvents makes the service publish an EnrollmentEvent to channel after
// every committed change.
func (s *EnrollmentService) WithEvents(publisher Publisher, channel string) *EnrollmentService {
	s.publisher = publisher
	s.channel = channel
	return s
}

// Enroll adds the student to the tutor's roster.
func (s *EnrollmentService) Enroll(ctx context.Context, in EnrollInput) (types.Enrollment, error) {
	in.normalize()
	if err := validateInput(in); err != nil {
		return types.Enrollment{}, err
	}

	var created types.Enrollment
	err := s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		// Lock order is tutor then student everywhere.
		tutor, err := tx.GetTutorForUpdate(ctx, in.TutorUsername)
		if err != nil {
			return translate(err, "tutor not found")
		}
		student, err := tx.GetStudentForUpdate(ctx, in.StudentUsername)
		if err != nil {
			return translate(err, "student not found")
		}

		if student.HasTutor() {
			return newError(KindConflict, "student already enrolled")
		}
		_, err = tx.GetActiveEnrollment(ctx, tutor.Username, student.Username)
		if err == nil {
			return newError(KindConflict, "duplicate enrollment")
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if tutor.RosterFull() {
			return newError(KindCapacityExceeded, "tutor has reached the maximum number of students")
		}

		if err := tx.AddToRoster(ctx, tutor.Username, student.Username); err != nil {
			return err
		}
		if err := tx.SetStudentTutor(ctx, student.Username, &tutor.Username); err != nil {
			return err
		}
		created, err = tx.CreateEnrollment(ctx, types.Enrollment{
			TutorUsername:   tutor.Username,
			StudentUsername: student.Username,
			EnrolledAt:      s.now(),
		})
		return err
	})
	if err != nil {
		return types.Enrollment{}, translate(err, "enrollment not found")
	}

	s.publish(ctx, types.EnrollmentCreated, in.TutorUsername, in.StudentUsername)
	return created, nil
}

// RemoveEnrollment ends the active enrollment of the pair.
func (s *EnrollmentService) RemoveEnrollment(ctx context.Context, in RemoveEnrollmentInput) error {
	in.normalize()
	if err := validateInput(in); err != nil {
		return err
	}

	err := s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		tutor, err := tx.GetTutorForUpdate(ctx, in.TutorUsername)
		if err != nil {
			return translate(err, "tutor not found")
		}
		student, err := tx.GetStudentForUpdate(ctx, in.StudentUsername)
		if err != nil {
			return translate(err, "student not found")
		}
		enrollment, err := tx.GetActiveEnrollment(ctx, tutor.Username, student.Username)
		if err != nil {
			return translate(err, "enrollment not found")
		}

		if err := tx.EndEnrollment(ctx, enrollment.ID, s.now()); err != nil {
			return err
		}
		if err := tx.RemoveFromRoster(ctx, tutor.Username, student.Username); err != nil {
			return err
		}
		return tx.SetStudentTutor(ctx, student.Username, nil)
	})
	if err != nil {
		return translate(err, "enrollment not found")
	}

	s.publish(ctx, types.EnrollmentEnded, in.TutorUsername, in.StudentUsername)
	return nil
}

// GetRoster lists the tutor's students in enrollment order.
func (s *EnrollmentService) GetRoster(ctx context.Context, tutorUsername string) (types.Roster, error) {
	tutor, err := s.tutors.GetTutor(ctx, strings.TrimSpace(tutorUsername))
	if err != nil {
		return types.Roster{}, translate(err, "tutor not found")
	}

	roster := types.Roster{
		Students: make([]types.StudentSummary, 0, len(tutor.Students)),
		Max:      tutor.MaxStudents,
	}
	if len(tutor.Students) == 0 {
		return roster, nil
	}

	users, err := s.students.ListStudents(ctx, tutor.Students)
	if err != nil {
		return types.Roster{}, translate(err, "tutor not found")
	}
	byUsername := make(map[string]types.User, len(users))
	for _, user := range users {
		byUsername[user.Username] = user
	}

	enrollments, err := s.enrollments.ListEnrollments(ctx, tutor.Username)
	if err != nil {
		return types.Roster{}, translate(err, "tutor not found")
	}
	joined := make(map[string]time.Time, len(enrollments))
	for _, enrollment := range enrollments {
		if enrollment.Status == types.EnrollmentActive {
			joined[enrollment.StudentUsername] = enrollment.EnrolledAt
		}
	}

	for _, username := range tutor.Students {
		user, ok := byUsername[username]
		if !ok {
			s.logger.WarnContext(ctx, "roster entry without student account",
				"tutor", tutor.Username, "student", username)
			continue
		}
		joinedAt, ok := joined[username]
		if !ok {
			joinedAt = user.CreatedAt
		}
		roster.Students = append(roster.Students, types.StudentSummary{
			Name:     user.Name,
			Username: user.Username,
			Email:    user.Email,
			JoinedAt: joinedAt,
		})
	}
	roster.Count = len(roster.Students)
	return roster, nil
}

// History returns every enrollment record of the tutor, newest first.
func (s *EnrollmentService) History(ctx context.Context, tutorUsername string) ([]types.Enrollment, error) {
	tutor, err := s.tutors.GetTutor(ctx, strings.TrimSpace(tutorUsername))
	if err != nil {
		return nil, translate(err, "tutor not found")
	}
	enrollments, err := s.enrollments.ListEnrollments(ctx, tutor.Username)
	if err != nil {
		return nil, translate(err, "tutor not found")
	}
	return enrollments, nil
}

// GetAssignedTutor returns the public profile of the student's tutor.
func (s *EnrollmentService) GetAssignedTutor(ctx context.Context, studentUsername string) (types.TutorProfile, error) {
	tutor, err := assignedTutor(ctx, s.students, s.tutors, studentUsername)
	if err != nil {
		return types.TutorProfile{}, err
	}
	return tutor.Profile(), nil
}

// SearchStudents matches query case-insensitively against usernames. A
// blank query matches nothing.
func (s *EnrollmentService) SearchStudents(ctx context.Context, query string) ([]types.StudentMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []types.StudentMatch{}, nil
	}
	if len(query) > 64 {
		return nil, newError(KindValidation, "q must be at most 64 characters")
	}

	users, err := s.students.SearchStudents(ctx, query, maxSearchResults)
	if err != nil {
		return nil, translate(err, "")
	}
	matches := make([]types.StudentMatch, 0, len(users))
	for _, user := range users {
		matches = append(matches, types.StudentMatch{
			Username: user.Username,
			Name:     user.Name,
			HasTutor: user.HasTutor(),
		})
	}
	return matches, nil
}

// publish is best effort: the change is already committed.
func (s *EnrollmentService) publish(ctx context.Context, eventType types.EnrollmentEventType, tutor, student string) {
	if s.publisher == nil || s.channel == "" {
		return
	}

	event := types.EnrollmentEvent{
		Type:            eventType,
		TutorUsername:   tutor,
		StudentUsername: student,
		OccurredAt:      s.now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode enrollment event", "error", err)
		return
	}

	id, err := s.publisher.Publish(ctx, s.channel, data, map[string]string{"type": string(eventType)})
	if err != nil {
		s.logger.WarnContext(ctx, "publish enrollment event failed",
			"type", eventType, "tutor", tutor, "student", student, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "enrollment event published", "type", eventType, "message_id", id)
}

func assignedTutor(ctx context.Context, students StudentRepository, tutors TutorRepository, studentUsername string) (types.Tutor, error) {
	student, err := students.GetStudent(ctx, strings.TrimSpace(studentUsername))
	if err != nil {
		return types.Tutor{}, translate(err, "student not found")
	}
	if !student.HasTutor() {
		return types.Tutor{}, newError(KindNotFound, "no tutor assigned")
	}
	tutor, err := tutors.GetTutor(ctx, *student.TutorUsername)
	if err != nil {
		return types.Tutor{}, translate(err, "no tutor assigned")
	}
	return tutor, nil
}
