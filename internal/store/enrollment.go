package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/smartkids/tutoring-api/internal/db"
	"github.com/smartkids/tutoring-api/types"
)

const enrollmentColumns = `id, tutor_username, student_username, enrolled_at, ended_at, status`

// EnrollmentRepository handles persistence for enrollment audit records.
type EnrollmentRepository struct {
	q       db.Querier
	timeout time.Duration
}

func NewEnrollmentRepository(q db.Querier, timeout time.Duration) *EnrollmentRepository {
	return &EnrollmentRepository{q: q, timeout: timeout}
}

func scanEnrollment(row rowScanner) (types.Enrollment, error) {
	var enrollment types.Enrollment
	var endedAt sql.NullTime
	err := row.Scan(
		&enrollment.ID,
		&enrollment.TutorUsername,
		&enrollment.StudentUsername,
		&enrollment.EnrolledAt,
		&endedAt,
		&enrollment.Status,
	)
	if err != nil {
		return types.Enrollment{}, err
	}
	if endedAt.Valid {
		enrollment.EndedAt = &endedAt.Time
	}
	return enrollment, nil
}

func (r *EnrollmentRepository) GetActiveEnrollment(ctx context.Context, tutor, student string) (types.Enrollment, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE tutor_username = $1
		  AND student_username = $2
		  AND status = $3`
	enrollment, err := scanEnrollment(r.q.QueryRowContext(ctx, query, tutor, student, types.EnrollmentActive))
	if err != nil {
		return types.Enrollment{}, rowError(err)
	}
	return enrollment, nil
}

// ListEnrollments returns the full enrollment history of a tutor, newest first.
func (r *EnrollmentRepository) ListEnrollments(ctx context.Context, tutor string) ([]types.Enrollment, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE tutor_username = $1
		ORDER BY enrolled_at DESC, id DESC`
	rows, err := r.q.QueryContext(ctx, query, tutor)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	enrollments := make([]types.Enrollment, 0)
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, db.MapError(err)
		}
		enrollments = append(enrollments, enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return enrollments, nil
}

func (r *EnrollmentRepository) CreateEnrollment(ctx context.Context, enrollment types.Enrollment) (types.Enrollment, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	enrollment.Status = types.EnrollmentActive
	enrollment.EndedAt = nil

	const query = `
		INSERT INTO enrollments (tutor_username, student_username, enrolled_at, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.q.QueryRowContext(
		ctx,
		query,
		enrollment.TutorUsername,
		enrollment.StudentUsername,
		enrollment.EnrolledAt,
		enrollment.Status,
	).Scan(&enrollment.ID); err != nil {
		return types.Enrollment{}, db.MapError(err)
	}
	return enrollment, nil
}

// EndEnrollment marks an active enrollment as removed. The row is kept as
// audit history.
func (r *EnrollmentRepository) EndEnrollment(ctx context.Context, id int64, endedAt time.Time) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		UPDATE enrollments
		SET status = $2,
			ended_at = $3
		WHERE id = $1
		  AND status = $4`
	result, err := r.q.ExecContext(ctx, query, id, types.EnrollmentRemoved, endedAt, types.EnrollmentActive)
	if err != nil {
		return db.MapError(err)
	}
	return requireAffected(result)
}
