package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrDuplicateKey is returned on unique constraint violations.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrCheckViolation is returned when a CHECK constraint rejects a write.
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrForeignKeyViolation is returned when a referenced row is missing.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrTimeout is returned when a statement exceeds its deadline.
	ErrTimeout = errors.New("database timeout")

	// ErrConnection is returned when the server cannot be reached.
	ErrConnection = errors.New("database connection failed")
)

// Error keeps the original driver error next to the sentinel it maps to.
type Error struct {
	Sentinel   error
	Cause      error
	Constraint string
}

func (e *Error) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s on %s: %v", e.Sentinel, e.Constraint, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Sentinel, e.Cause)
}

func (e *Error) Is(target error) bool { return e.Sentinel == target }
func (e *Error) Unwrap() error        { return e.Cause }

// MapError translates driver and context errors into the package sentinels.
// Errors that match nothing are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var mapped *Error
	if errors.As(err, &mapped) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Sentinel: ErrTimeout, Cause: err}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return &Error{Sentinel: ErrConnection, Cause: err}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if sentinel := sentinelForCode(string(pqErr.Code)); sentinel != nil {
			return &Error{Sentinel: sentinel, Cause: err, Constraint: pqErr.Constraint}
		}
		return err
	}

	// Dial failures surface as *net.OpError wrapped by the driver.
	if strings.Contains(err.Error(), "connection refused") {
		return &Error{Sentinel: ErrConnection, Cause: err}
	}
	return err
}

// Constraint returns the violated constraint name, if known.
func Constraint(err error) string {
	var mapped *Error
	if errors.As(err, &mapped) {
		return mapped.Constraint
	}
	return ""
}

// PostgreSQL SQLSTATE codes: https://www.postgresql.org/docs/current/errcodes-appendix.html
func sentinelForCode(code string) error {
	switch {
	case code == "23505":
		return ErrDuplicateKey
	case code == "23514":
		return ErrCheckViolation
	case code == "23503":
		return ErrForeignKeyViolation
	case code == "57014":
		return ErrTimeout
	case strings.HasPrefix(code, "08"):
		return ErrConnection
	}
	return nil
}
