package store

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/smartkids/tutoring-api/internal/db"
	"github.com/smartkids/tutoring-api/types"
)

const tutorColumns = `id, username, email, name, role, password_hash, subject, availability, message, students, max_students, created_at, updated_at`

// TutorRepository handles persistence for tutor accounts and rosters.
type TutorRepository struct {
	q       db.Querier
	timeout time.Duration
}

func NewTutorRepository(q db.Querier, timeout time.Duration) *TutorRepository {
	return &TutorRepository{q: q, timeout: timeout}
}

func scanTutor(row rowScanner) (types.Tutor, error) {
	var tutor types.Tutor
	var students pq.StringArray
	err := row.Scan(
		&tutor.ID,
		&tutor.Username,
		&tutor.Email,
		&tutor.Name,
		&tutor.Role,
		&tutor.PasswordHash,
		&tutor.Subject,
		&tutor.Availability,
		&tutor.Message,
		&students,
		&tutor.MaxStudents,
		&tutor.CreatedAt,
		&tutor.UpdatedAt,
	)
	if err != nil {
		return types.Tutor{}, err
	}
	tutor.Students = []string(students)
	if tutor.Students == nil {
		tutor.Students = []string{}
	}
	return tutor, nil
}

func (r *TutorRepository) GetTutor(ctx context.Context, username string) (types.Tutor, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + tutorColumns + ` FROM tutors WHERE username = $1`
	return r.getTutor(ctx, query, username)
}

// GetTutorForUpdate loads the tutor and locks the row, serialising roster
// changes for that tutor until the surrounding transaction ends.
func (r *TutorRepository) GetTutorForUpdate(ctx context.Context, username string) (types.Tutor, error) {
	query := `SELECT ` + tutorColumns + ` FROM tutors WHERE username = $1 FOR UPDATE`
	return r.getTutor(ctx, query, username)
}

func (r *TutorRepository) getTutor(ctx context.Context, query, username string) (types.Tutor, error) {
	tutor, err := scanTutor(r.q.QueryRowContext(ctx, query, username))
	if err != nil {
		return types.Tutor{}, rowError(err)
	}
	return tutor, nil
}

func (r *TutorRepository) CreateTutor(ctx context.Context, tutor types.Tutor) (types.Tutor, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	tutor.CreatedAt = now
	tutor.UpdatedAt = now
	tutor.Role = types.RoleTutor
	tutor.Students = []string{}
	if tutor.MaxStudents <= 0 {
		tutor.MaxStudents = types.DefaultMaxStudents
	}

	const query = `
		INSERT INTO tutors (
			username, email, name, role, password_hash,
			subject, availability, message, students, max_students,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	if err := r.q.QueryRowContext(
		ctx,
		query,
		tutor.Username,
		tutor.Email,
		tutor.Name,
		tutor.Role,
		tutor.PasswordHash,
		tutor.Subject,
		tutor.Availability,
		tutor.Message,
		pq.Array(tutor.Students),
		tutor.MaxStudents,
		tutor.CreatedAt,
		tutor.UpdatedAt,
	).Scan(&tutor.ID); err != nil {
		return types.Tutor{}, db.MapError(err)
	}
	return tutor, nil
}

// AddToRoster appends student to the tutor's roster unless already present.
func (r *TutorRepository) AddToRoster(ctx context.Context, tutor, student string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		UPDATE tutors
		SET students = array_append(students, $2::text),
			updated_at = $3
		WHERE username = $1
		  AND NOT ($2::text = ANY(students))`
	if _, err := r.q.ExecContext(ctx, query, tutor, student, time.Now().UTC()); err != nil {
		return db.MapError(err)
	}
	return nil
}

// RemoveFromRoster removes every occurrence of student from the roster.
func (r *TutorRepository) RemoveFromRoster(ctx context.Context, tutor, student string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		UPDATE tutors
		SET students = array_remove(students, $2::text),
			updated_at = $3
		WHERE username = $1`
	result, err := r.q.ExecContext(ctx, query, tutor, student, time.Now().UTC())
	if err != nil {
		return db.MapError(err)
	}
	return requireAffected(result)
}
