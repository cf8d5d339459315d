package types

import "time"

// TutorApplication is a request from a prospective tutor to join the
// platform. The optional attachment (CV, certificates) lives in object
// storage under AttachmentKey.
type TutorApplication struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email" db:"email"`
	Subject       string    `json:"subject" db:"subject"`
	Message       string    `json:"message" db:"message"`
	AttachmentKey *string   `json:"attachment_key,omitempty" db:"attachment_key"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
