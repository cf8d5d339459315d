package services

import (
	"errors"
	"fmt"

	"github.com/smartkids/tutoring-api/internal/db"
	"github.com/smartkids/tutoring-api/internal/store"
)

// Kind classifies a service failure. Callers switch on the kind rather than
// on the message.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindForbidden        Kind = "forbidden"
	KindUnauthenticated  Kind = "unauthenticated"
	KindUnavailable      Kind = "unavailable"
	KindInternal         Kind = "internal"
)

// Error is the structured failure returned by every service operation.
// Message is safe to show to the caller; Err carries the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of err. Errors not produced by this package are
// internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Constraint names from the migrations that carry domain meaning.
const (
	constraintRosterCapacity = "tutors_roster_capacity"
	constraintActivePair     = "enrollments_active_pair_idx"
	constraintActiveStudent  = "enrollments_active_student_idx"
	constraintOfficeHourSlot = "office_hours_slot_key"
)

// translate converts store and database failures into service errors.
// notFound is the message used for store.ErrNotFound.
func translate(err error, notFound string) error {
	if err == nil {
		return nil
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return wrapError(KindNotFound, notFound, err)
	case errors.Is(err, db.ErrTimeout), errors.Is(err, db.ErrConnection):
		return wrapError(KindUnavailable, "data store unavailable, try again later", err)
	case errors.Is(err, db.ErrCheckViolation) && db.Constraint(err) == constraintRosterCapacity:
		return wrapError(KindCapacityExceeded, "tutor has reached the maximum number of students", err)
	case errors.Is(err, db.ErrDuplicateKey):
		switch db.Constraint(err) {
		case constraintActivePair:
			return wrapError(KindConflict, "duplicate enrollment", err)
		case constraintActiveStudent:
			return wrapError(KindConflict, "student already enrolled", err)
		case constraintOfficeHourSlot:
			return wrapError(KindConflict, "office hour already exists", err)
		default:
			return wrapError(KindConflict, "username or email already in use", err)
		}
	case errors.Is(err, db.ErrForeignKeyViolation):
		return wrapError(KindNotFound, notFound, err)
	}
	return wrapError(KindInternal, "internal error", err)
}
