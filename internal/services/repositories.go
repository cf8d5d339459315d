package services

import (
	"context"

	"github.com/smartkids/tutoring-api/internal/store"
	"github.com/smartkids/tutoring-api/types"
)

// TxRunner runs a unit of work atomically.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error
}

// StudentRepository defines read operations for student accounts.
type StudentRepository interface {
	GetStudent(ctx context.Context, username string) (types.User, error)
	ListStudents(ctx context.Context, usernames []string) ([]types.User, error)
	SearchStudents(ctx context.Context, query string, limit int) ([]types.User, error)
}

// TutorRepository defines read operations for tutor accounts.
type TutorRepository interface {
	GetTutor(ctx context.Context, username string) (types.Tutor, error)
}

// EnrollmentRepository defines read operations for enrollment records.
type EnrollmentRepository interface {
	ListEnrollments(ctx context.Context, tutor string) ([]types.Enrollment, error)
}

// OfficeHourRepository defines persistence operations for office hours
// outside a transaction.
type OfficeHourRepository interface {
	GetOfficeHour(ctx context.Context, id string) (types.OfficeHour, error)
	ListOfficeHours(ctx context.Context, tutor string) ([]types.OfficeHour, error)
	DeleteOfficeHour(ctx context.Context, id, tutor string) error
}

// ApplicationRepository defines persistence operations for tutor applications.
type ApplicationRepository interface {
	GetApplication(ctx context.Context, id int64) (types.TutorApplication, error)
	CreateApplication(ctx context.Context, application types.TutorApplication) (types.TutorApplication, error)
}
