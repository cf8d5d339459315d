package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/smartkids/tutoring-api/internal/db"
	"github.com/smartkids/tutoring-api/internal/store"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    Kind
		message string
	}{
		{name: "not found", err: fmt.Errorf("load: %w", store.ErrNotFound), kind: KindNotFound, message: "thing not found"},
		{name: "timeout", err: &db.Error{Sentinel: db.ErrTimeout, Cause: context.DeadlineExceeded}, kind: KindUnavailable},
		{name: "connection", err: &db.Error{Sentinel: db.ErrConnection, Cause: errors.New("refused")}, kind: KindUnavailable},
		{name: "roster check", err: &db.Error{Sentinel: db.ErrCheckViolation, Cause: errors.New("check"), Constraint: constraintRosterCapacity}, kind: KindCapacityExceeded},
		{name: "other check", err: &db.Error{Sentinel: db.ErrCheckViolation, Cause: errors.New("check"), Constraint: "tutors_max_students_check"}, kind: KindInternal},
		{name: "active pair", err: &db.Error{Sentinel: db.ErrDuplicateKey, Cause: errors.New("dup"), Constraint: constraintActivePair}, kind: KindConflict, message: "duplicate enrollment"},
		{name: "active student", err: &db.Error{Sentinel: db.ErrDuplicateKey, Cause: errors.New("dup"), Constraint: constraintActiveStudent}, kind: KindConflict, message: "student already enrolled"},
		{name: "username", err: &db.Error{Sentinel: db.ErrDuplicateKey, Cause: errors.New("dup"), Constraint: "users_username_key"}, kind: KindConflict},
		{name: "unknown", err: errors.New("boom"), kind: KindInternal, message: "internal error"},
		{name: "already translated", err: newError(KindForbidden, "nope"), kind: KindForbidden, message: "nope"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := translate(tc.err, "thing not found")
			if got := KindOf(err); got != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, got)
			}
			var svcErr *Error
			if !errors.As(err, &svcErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if tc.message != "" && svcErr.Message != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, svcErr.Message)
			}
			if tc.kind != KindForbidden && !errors.Is(err, tc.err) {
				t.Fatalf("expected cause to be preserved")
			}
		})
	}

	if translate(nil, "x") != nil {
		t.Fatalf("expected nil for nil error")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatalf("expected plain errors to be internal")
	}
}

func TestNormalizeDays(t *testing.T) {
	got := normalizeDays([]string{"sunday", " Monday ", "MONDAY", "", "funday", "tuesday"})
	want := []string{"Monday", "Tuesday", "Sunday", "Funday"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
