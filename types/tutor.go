package types

import (
	"slices"
	"time"
)

// DefaultMaxStudents is the roster capacity given to tutors that do not
// choose one at signup.
const DefaultMaxStudents = 3

// Tutor represents a tutor account together with its roster.
type Tutor struct {
	// ID is the unique identifier of the tutor.
	ID int64 `json:"id" db:"id"`

	// Username is the unique login name chosen by the tutor.
	Username string `json:"username" db:"username"`

	// Email is the tutor's email address. It is unique across all accounts.
	Email string `json:"email" db:"email"`

	// Name is the tutor's display or full name.
	Name string `json:"name" db:"name"`

	// Role is always RoleTutor for records of this type.
	Role string `json:"role" db:"role"`

	// PasswordHash stores the one-way hash of the tutor's password.
	PasswordHash string `json:"-" db:"password_hash"`

	// Subject is the subject the tutor teaches.
	Subject string `json:"subject" db:"subject"`

	// Availability is a free-form description of when the tutor is available.
	Availability string `json:"availability" db:"availability"`

	// Message is a free-text note shown to the tutor's students.
	Message string `json:"message" db:"message"`

	// Students holds the usernames of enrolled students in insertion order.
	// It never contains duplicates and never exceeds MaxStudents entries.
	Students []string `json:"students" db:"students"`

	// MaxStudents is the roster capacity.
	MaxStudents int `json:"max_students" db:"max_students"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasStudent reports whether username is on the roster.
func (t Tutor) HasStudent(username string) bool {
	return slices.Contains(t.Students, username)
}

// RosterFull reports whether another student can no longer be enrolled.
func (t Tutor) RosterFull() bool {
	return len(t.Students) >= t.MaxStudents
}

// Profile returns the public view of the tutor.
func (t Tutor) Profile() TutorProfile {
	return TutorProfile{
		Username:     t.Username,
		Name:         t.Name,
		Email:        t.Email,
		Subject:      t.Subject,
		Availability: t.Availability,
		Message:      t.Message,
	}
}

// TutorProfile is the tutor information a student may see.
type TutorProfile struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Subject      string `json:"subject"`
	Availability string `json:"availability"`
	Message      string `json:"message"`
}

// Roster lists a tutor's enrolled students with the roster size and limit.
type Roster struct {
	Students []StudentSummary `json:"students"`
	Count    int              `json:"count"`
	Max      int              `json:"max"`
}
