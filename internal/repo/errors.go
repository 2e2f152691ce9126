package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can use either sentinel.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates an insert hit a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// IsDuplicate reports whether err is a unique-constraint violation. Drivers
// differ: gorm translates some to gorm.ErrDuplicatedKey, glebarez/sqlite often
// returns plain text.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite: "UNIQUE constraint failed"
	// Postgres: "duplicate key value violates unique constraint"
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// duplicateOr maps unique violations to ErrDuplicate and passes anything else through.
func duplicateOr(err error) error {
	if IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}
