// Package auth issues and verifies signed, time-limited session tokens.
//
// Tokens are HS256 JWTs carrying {userId, role, iat, exp}. There is no
// server-side session state and no refresh: a token is valid while its
// signature matches and the current time is before exp.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-meme-gallery/internal/domain"
)

// DefaultTTL is the lifetime of an issued token.
const DefaultTTL = time.Hour

// ErrInvalidToken is returned by Verify for any token that cannot be trusted:
// malformed, wrong signature or algorithm, expired, or carrying an unknown role.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload.
type Claims struct {
	UserID uint        `json:"userId"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the caller identity carried by the claims.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{UserID: c.UserID, Role: c.Role}
}

// TokenService signs and verifies session tokens with a process-wide secret.
// It is safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a TokenService.
type Option func(*TokenService)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(s *TokenService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService returns a TokenService signing with secret.
func NewTokenService(secret string, opts ...Option) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	s := &TokenService{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// TTL reports the configured token lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for userID with role, valid for the configured TTL.
func (s *TokenService) Issue(userID uint, role domain.Role) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("auth: cannot issue token for role %q", role)
	}
	now := s.now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses and validates token. Every failure collapses to ErrInvalidToken;
// the underlying cause is wrapped for logging.
func (s *TokenService) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || !claims.Role.Valid() || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
