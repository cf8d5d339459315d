package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/smartkids/tutoring-api/internal/db"
	"github.com/smartkids/tutoring-api/types"
)

// ApplicationRepository handles persistence for tutor applications.
type ApplicationRepository struct {
	q       db.Querier
	timeout time.Duration
}

func NewApplicationRepository(q db.Querier, timeout time.Duration) *ApplicationRepository {
	return &ApplicationRepository{q: q, timeout: timeout}
}

func (r *ApplicationRepository) GetApplication(ctx context.Context, id int64) (types.TutorApplication, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT id, name, email, subject, message, attachment_key, created_at
		FROM tutor_applications
		WHERE id = $1`
	var application types.TutorApplication
	var attachmentKey sql.NullString
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&application.ID,
		&application.Name,
		&application.Email,
		&application.Subject,
		&application.Message,
		&attachmentKey,
		&application.CreatedAt,
	)
	if err != nil {
		return types.TutorApplication{}, rowError(err)
	}
	if attachmentKey.Valid {
		application.AttachmentKey = &attachmentKey.String
	}
	return application, nil
}

func (r *ApplicationRepository) CreateApplication(ctx context.Context, application types.TutorApplication) (types.TutorApplication, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	application.CreatedAt = time.Now().UTC()

	var attachmentKey sql.NullString
	if application.AttachmentKey != nil {
		attachmentKey = sql.NullString{String: *application.AttachmentKey, Valid: true}
	}

	const query = `
		INSERT INTO tutor_applications (name, email, subject, message, attachment_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.q.QueryRowContext(
		ctx,
		query,
		application.Name,
		application.Email,
		application.Subject,
		application.Message,
		attachmentKey,
		application.CreatedAt,
	).Scan(&application.ID); err != nil {
		return types.TutorApplication{}, db.MapError(err)
	}
	return application, nil
}
