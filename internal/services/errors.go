// Package services defines the business logic for accounts, memes and likes.
// This file centralizes service-level error values so that they can be
// returned by service methods and checked by callers with errors.Is/As.
//
// Translation into user-facing messages and HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Account errors.
var (
	// ErrDuplicateUsername is returned when registering a username that is
	// already taken, including when a concurrent registration wins the race.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password so callers cannot tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound indicates the authenticated user no longer exists.
	ErrUserNotFound = errors.New("user not found")
)

// Meme errors.
var (
	// ErrMemeNotFound indicates that the requested meme does not exist.
	ErrMemeNotFound = errors.New("meme not found")
)

// ValidationError reports the first input field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
