package types

import "time"

// EnrollmentStatus is the lifecycle state of an enrollment record.
type EnrollmentStatus string

const (
	EnrollmentActive  EnrollmentStatus = "active"
	EnrollmentRemoved EnrollmentStatus = "removed"
)

// Enrollment is the audit record of a tutor/student pairing. At most one
// active record exists per pair.
type Enrollment struct {
	ID              int64            `json:"id" db:"id"`
	TutorUsername   string           `json:"tutor_username" db:"tutor_username"`
	StudentUsername string           `json:"student_username" db:"student_username"`
	EnrolledAt      time.Time        `json:"enrolled_at" db:"enrolled_at"`
	EndedAt         *time.Time       `json:"ended_at,omitempty" db:"ended_at"`
	Status          EnrollmentStatus `json:"status" db:"status"`
}

// EnrollmentEventType names the change an EnrollmentEvent reports.
type EnrollmentEventType string

const (
	EnrollmentCreated EnrollmentEventType = "enrollment.created"
	EnrollmentEnded   EnrollmentEventType = "enrollment.removed"
)

// EnrollmentEvent is published after an enrollment change commits.
type EnrollmentEvent struct {
	Type            EnrollmentEventType `json:"type"`
	TutorUsername   string              `json:"tutor_username"`
	StudentUsername string              `json:"student_username"`
	OccurredAt      time.Time           `json:"occurred_at"`
}
