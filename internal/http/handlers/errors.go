// Package handlers defines the HTTP-layer error codes and the mapping from
// service errors to responses.
//
// Codes are lowercase snake_case and stable; clients branch on them. The
// human-readable message travels in the "error" field.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meme-gallery/internal/services"
)

const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeMissingToken       = "missing_token"
	ErrCodeInvalidToken       = "invalid_token"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeInvalidID          = "invalid_id"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInternal           = "internal_error"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
)

// User-facing messages.
const (
	msgInvalidJSON        = "Invalid JSON body"
	msgDuplicateUsername  = "Username already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgUserNotFound       = "User not found"
	msgMemeNotFound       = "Meme not found"
	msgInvalidMemeID      = "Invalid meme id"
	msgUnauthenticated    = "Missing token"
	msgServerError        = "Server error"
)

// failService translates a service error into a response. Anything not
// recognised becomes a 500 whose detail only reaches the log.
func failService(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, ve.Message, nil)
	case errors.Is(err, services.ErrDuplicateUsername):
		fail(c, http.StatusConflict, ErrCodeConflict, msgDuplicateUsername, nil)
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, msgInvalidCredentials, nil)
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, msgUserNotFound, nil)
	case errors.Is(err, services.ErrMemeNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, msgMemeNotFound, nil)
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, msgServerError, err)
	}
}
