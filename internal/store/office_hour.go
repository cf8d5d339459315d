package store

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/smartkids/tutoring-api/internal/db"
	"github.com/smartkids/tutoring-api/types"
)

const officeHourColumns = `id, tutor_username, days, start_time, end_time, timezone, created_at, updated_at`

// OfficeHourRepository handles persistence for tutor office hours.
type OfficeHourRepository struct {
	q       db.Querier
	timeout time.Duration
}

func NewOfficeHourRepository(q db.Querier, timeout time.Duration) *OfficeHourRepository {
	return &OfficeHourRepository{q: q, timeout: timeout}
}

func scanOfficeHour(row rowScanner) (types.OfficeHour, error) {
	var officeHour types.OfficeHour
	var days pq.StringArray
	err := row.Scan(
		&officeHour.ID,
		&officeHour.TutorUsername,
		&days,
		&officeHour.StartTime,
		&officeHour.EndTime,
		&officeHour.Timezone,
		&officeHour.CreatedAt,
		&officeHour.UpdatedAt,
	)
	if err != nil {
		return types.OfficeHour{}, err
	}
	officeHour.Days = []string(days)
	return officeHour, nil
}

func (r *OfficeHourRepository) GetOfficeHour(ctx context.Context, id string) (types.OfficeHour, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + officeHourColumns + ` FROM office_hours WHERE id = $1`
	officeHour, err := scanOfficeHour(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.OfficeHour{}, rowError(err)
	}
	return officeHour, nil
}

// ListOfficeHours returns the tutor's office hours by ascending start time.
func (r *OfficeHourRepository) ListOfficeHours(ctx context.Context, tutor string) ([]types.OfficeHour, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + officeHourColumns + `
		FROM office_hours
		WHERE tutor_username = $1
		ORDER BY start_time, end_time, id`
	rows, err := r.q.QueryContext(ctx, query, tutor)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	officeHours := make([]types.OfficeHour, 0)
	for rows.Next() {
		officeHour, err := scanOfficeHour(rows)
		if err != nil {
			return nil, db.MapError(err)
		}
		officeHours = append(officeHours, officeHour)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return officeHours, nil
}

func (r *OfficeHourRepository) CreateOfficeHour(ctx context.Context, officeHour types.OfficeHour) (types.OfficeHour, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	officeHour.CreatedAt = now
	officeHour.UpdatedAt = now

	const query = `
		INSERT INTO office_hours (id, tutor_username, days, start_time, end_time, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.q.ExecContext(
		ctx,
		query,
		officeHour.ID,
		officeHour.TutorUsername,
		pq.Array(officeHour.Days),
		officeHour.StartTime,
		officeHour.EndTime,
		officeHour.Timezone,
		officeHour.CreatedAt,
		officeHour.UpdatedAt,
	); err != nil {
		return types.OfficeHour{}, db.MapError(err)
	}
	return officeHour, nil
}

// DeleteOfficeHoursBySlot removes the tutor's records for the exact time
// range and returns how many were deleted.
func (r *OfficeHourRepository) DeleteOfficeHoursBySlot(ctx context.Context, tutor, startTime, endTime, timezone string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		DELETE FROM office_hours
		WHERE tutor_username = $1
		  AND start_time = $2
		  AND end_time = $3
		  AND timezone = $4`
	result, err := r.q.ExecContext(ctx, query, tutor, startTime, endTime, timezone)
	if err != nil {
		return 0, db.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, db.MapError(err)
	}
	return affected, nil
}

// DeleteOfficeHour removes the record only while it still belongs to tutor.
func (r *OfficeHourRepository) DeleteOfficeHour(ctx context.Context, id, tutor string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const query = `DELETE FROM office_hours WHERE id = $1 AND tutor_username = $2`
	result, err := r.q.ExecContext(ctx, query, id, tutor)
	if err != nil {
		return db.MapError(err)
	}
	return requireAffected(result)
}
