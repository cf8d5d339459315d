package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/smartkids/tutoring-api/internal/db"
	"github.com/smartkids/tutoring-api/types"
)

// Tx is the set of reads and writes available inside a unit of work. Every
// call made through a Tx commits or rolls back together.
type Tx interface {
	GetStudentForUpdate(ctx context.Context, username string) (types.User, error)
	GetTutorForUpdate(ctx context.Context, username string) (types.Tutor, error)
	LockIdentity(ctx context.Context, username, email string) error
	AccountExists(ctx context.Context, username, email string) (bool, error)
	CreateStudent(ctx context.Context, user types.User) (types.User, error)
	CreateTutor(ctx context.Context, tutor types.Tutor) (types.Tutor, error)
	SetStudentTutor(ctx context.Context, student string, tutor *string) error
	AddToRoster(ctx context.Context, tutor, student string) error
	RemoveFromRoster(ctx context.Context, tutor, student string) error
	GetActiveEnrollment(ctx context.Context, tutor, student string) (types.Enrollment, error)
	CreateEnrollment(ctx context.Context, enrollment types.Enrollment) (types.Enrollment, error)
	EndEnrollment(ctx context.Context, id int64, endedAt time.Time) error
	DeleteOfficeHoursBySlot(ctx context.Context, tutor, startTime, endTime, timezone string) (int64, error)
	CreateOfficeHour(ctx context.Context, officeHour types.OfficeHour) (types.OfficeHour, error)
}

// Options tunes a Store.
type Options struct {
	// OperationTimeout bounds every statement and every transaction unless
	// the caller's context already has a tighter deadline.
	OperationTimeout time.Duration
	// SlowQuery is the duration after which a statement is logged as slow.
	SlowQuery time.Duration
	Logger    *slog.Logger
}

// Store owns the connection pool and hands out repositories bound to it.
type Store struct {
	db      *sql.DB
	opts    Options
	querier db.Querier

	Students     *StudentRepository
	Tutors       *TutorRepository
	Enrollments  *EnrollmentRepository
	OfficeHours  *OfficeHourRepository
	Applications *ApplicationRepository
}

func New(conn *sql.DB, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	q := db.WithLogging(conn, opts.Logger, opts.SlowQuery)
	return &Store{
		db:           conn,
		opts:         opts,
		querier:      q,
		Students:     NewStudentRepository(q, opts.OperationTimeout),
		Tutors:       NewTutorRepository(q, opts.OperationTimeout),
		Enrollments:  NewEnrollmentRepository(q, opts.OperationTimeout),
		OfficeHours:  NewOfficeHourRepository(q, opts.OperationTimeout),
		Applications: NewApplicationRepository(q, opts.OperationTimeout),
	}
}

// InTx runs fn as a single transaction bounded by the operation timeout.
// fn must use the context it is given.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel := withTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	return db.WithTx(ctx, s.db, func(sqlTx *sql.Tx) error {
		q := db.WithLogging(sqlTx, s.opts.Logger, s.opts.SlowQuery)
		return fn(ctx, newTx(q))
	})
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()
	return db.MapError(s.db.PingContext(ctx))
}

type sqlTx struct {
	*StudentRepository
	*TutorRepository
	*EnrollmentRepository
	*OfficeHourRepository
	q db.Querier
}

var _ Tx = (*sqlTx)(nil)

func newTx(q db.Querier) *sqlTx {
	return &sqlTx{
		StudentRepository:    NewStudentRepository(q, 0),
		TutorRepository:      NewTutorRepository(q, 0),
		EnrollmentRepository: NewEnrollmentRepository(q, 0),
		OfficeHourRepository: NewOfficeHourRepository(q, 0),
		q:                    q,
	}
}

// Advisory lock classes for account identities. Usernames and emails use
// separate classes so their keys never collide.
const (
	identityLockUsername = 7301
	identityLockEmail    = 7302
)

// LockIdentity takes transaction-scoped advisory locks on the username and
// the email. Registrations for the same identity in either account table
// then run their existence check and insert one after another. The username
// lock is always taken first.
func (t *sqlTx) LockIdentity(ctx context.Context, username, email string) error {
	const query = `SELECT pg_advisory_xact_lock($1, hashtext($2))`
	if _, err := t.q.ExecContext(ctx, query, identityLockUsername, username); err != nil {
		return db.MapError(err)
	}
	if _, err := t.q.ExecContext(ctx, query, identityLockEmail, email); err != nil {
		return db.MapError(err)
	}
	return nil
}

// AccountExists reports whether a student or tutor already uses the
// username or the email.
func (t *sqlTx) AccountExists(ctx context.Context, username, email string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE username = $1 OR email = $2
			UNION ALL
			SELECT 1 FROM tutors WHERE username = $1 OR email = $2
		)`
	var exists bool
	if err := t.q.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, db.MapError(err)
	}
	return exists, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= d {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
