package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-meme-gallery/internal/auth"
	"github.com/tbourn/go-meme-gallery/internal/domain"
)

const (
	// userIDKey holds the caller's user ID as a decimal string; read by the
	// per-user rate limiter.
	userIDKey = "userID"
	// identityKey holds the caller's domain.Identity.
	identityKey = "identity"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// RequireAuth admits only requests carrying a valid "Authorization: Bearer
// <token>" header. It never touches the store: the identity comes from the
// token alone.
//
//   - no header, a non-Bearer scheme or an empty token: 401 missing_token
//   - a token that fails verification: 401 invalid_token
func RequireAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortError(c, http.StatusUnauthorized, "missing_token", "Missing token")
			return
		}
		claims, err := v.Verify(raw)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("token rejected")
			abortError(c, http.StatusUnauthorized, "invalid_token", "Invalid token")
			return
		}

		id := claims.Identity()
		uid := strconv.FormatUint(uint64(id.UserID), 10)
		c.Set(identityKey, id)
		c.Set(userIDKey, uid)
		withLoggerFields(c, "user_id", uid)
		trace.SpanFromContext(c.Request.Context()).SetAttributes(
			attribute.Int64("enduser.id", int64(id.UserID)),
			attribute.String("enduser.role", id.Role.String()),
		)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// bearerToken extracts the token from an Authorization header value. The
// scheme is case-insensitive.
func bearerToken(h string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
