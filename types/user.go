package types

import "time"

const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
)

// User represents a student account.
// It contains identity, the assigned tutor, and audit metadata.
type User struct {
	// ID is the unique identifier of the student.
	ID int64 `json:"id" db:"id"`

	// Username is the unique login name chosen by the student.
	Username string `json:"username" db:"username"`

	// Email is the student's email address. It is unique across all accounts.
	Email string `json:"email" db:"email"`

	// Name is the student's display or full name.
	Name string `json:"name" db:"name"`

	// Role is always RoleStudent for records of this type.
	Role string `json:"role" db:"role"`

	// PasswordHash stores the one-way hash of the student's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// TutorUsername references the tutor this student is enrolled with.
	// It is nil while the student has no tutor.
	TutorUsername *string `json:"tutor_username" db:"tutor_username"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasTutor reports whether the student is currently enrolled with a tutor.
func (u User) HasTutor() bool {
	return u.TutorUsername != nil && *u.TutorUsername != ""
}

// Account is the role-independent view of a student or tutor returned by
// authentication endpoints.
type Account struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// StudentSummary is the roster entry shown to a tutor.
type StudentSummary struct {
	Name     string    `json:"name"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joined_at"`
}

// StudentMatch is a search hit. It tells whether the student already has a
// tutor but never which one.
type StudentMatch struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	HasTutor bool   `json:"has_tutor"`
}
