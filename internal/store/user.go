package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/smartkids/tutoring-api/internal/db"
	"github.com/smartkids/tutoring-api/types"
)

const studentColumns = `id, username, email, name, role, password_hash, tutor_username, created_at, updated_at`

// StudentRepository handles persistence for student accounts.
type StudentRepository struct {
	q       db.Querier
	timeout time.Duration
}

func NewStudentRepository(q db.Querier, timeout time.Duration) *StudentRepository {
	return &StudentRepository{q: q, timeout: timeout}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (types.User, error) {
	var user types.User
	var tutor sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.PasswordHash,
		&tutor,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, err
	}
	if tutor.Valid {
		user.TutorUsername = &tutor.String
	}
	return user, nil
}

func (r *StudentRepository) GetStudent(ctx context.Context, username string) (types.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + studentColumns + ` FROM users WHERE username = $1`
	return r.getStudent(ctx, query, username)
}

// GetStudentForUpdate loads the student and locks the row until the
// surrounding transaction ends.
func (r *StudentRepository) GetStudentForUpdate(ctx context.Context, username string) (types.User, error) {
	query := `SELECT ` + studentColumns + ` FROM users WHERE username = $1 FOR UPDATE`
	return r.getStudent(ctx, query, username)
}

func (r *StudentRepository) getStudent(ctx context.Context, query, username string) (types.User, error) {
	user, err := scanStudent(r.q.QueryRowContext(ctx, query, username))
	if err != nil {
		return types.User{}, rowError(err)
	}
	return user, nil
}

// ListStudents returns the students whose usernames are given. Unknown
// usernames are skipped; order is unspecified.
func (r *StudentRepository) ListStudents(ctx context.Context, usernames []string) ([]types.User, error) {
	if len(usernames) == 0 {
		return []types.User{}, nil
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + studentColumns + ` FROM users WHERE username = ANY($1)`
	return r.queryStudents(ctx, query, pq.Array(usernames))
}

// SearchStudents matches query as a case-insensitive substring of the
// username.
func (r *StudentRepository) SearchStudents(ctx context.Context, query string, limit int) ([]types.User, error) {
	if limit < 1 {
		limit = 20
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const search = `
		SELECT ` + studentColumns + `
		FROM users
		WHERE username ILIKE $1 ESCAPE '\'
		ORDER BY username
		LIMIT $2`
	return r.queryStudents(ctx, search, "%"+escapeLike(query)+"%", limit)
}

func (r *StudentRepository) queryStudents(ctx context.Context, query string, args ...any) ([]types.User, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanStudent(rows)
		if err != nil {
			return nil, db.MapError(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return users, nil
}

func (r *StudentRepository) CreateStudent(ctx context.Context, user types.User) (types.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Role = types.RoleStudent
	user.TutorUsername = nil

	const query = `
		INSERT INTO users (username, email, name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.q.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.Name,
		user.Role,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, db.MapError(err)
	}
	return user, nil
}

// SetStudentTutor assigns tutor to the student; a nil tutor clears it.
func (r *StudentRepository) SetStudentTutor(ctx context.Context, student string, tutor *string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		UPDATE users
		SET tutor_username = $2,
			updated_at = $3
		WHERE username = $1`
	var tutorValue sql.NullString
	if tutor != nil {
		tutorValue = sql.NullString{String: *tutor, Valid: true}
	}
	result, err := r.q.ExecContext(ctx, query, student, tutorValue, time.Now().UTC())
	if err != nil {
		return db.MapError(err)
	}
	return requireAffected(result)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
