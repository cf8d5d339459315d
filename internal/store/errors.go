package store

import (
	"database/sql"
	"errors"

	"github.com/smartkids/tutoring-api/internal/db"
)

// ErrNotFound is returned when a student, tutor, enrollment, office hour or
// application does not exist.
var ErrNotFound = errors.New("not found")

// rowError maps the error of a single-row scan.
func rowError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return db.MapError(err)
}

// requireAffected turns an update or delete that matched no row into
// ErrNotFound.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return db.MapError(err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
