// Package services – AuthService
//
// AuthService owns account registration, credential checks and the
// self-lookup used by GET /auth/me. Passwords are hashed with bcrypt; tokens
// are issued by an injected TokenIssuer so the service never sees the
// signing secret.
package services

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-meme-gallery/internal/domain"
	"github.com/tbourn/go-meme-gallery/internal/repo"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 10

// bcrypt only reads the first 72 bytes of a password.
const bcryptMaxBytes = 72

// UserRepo defines the persistence operations AuthService needs.
type UserRepo interface {
	// CreateUser inserts a user; returns repo.ErrDuplicate on a taken username.
	CreateUser(ctx context.Context, db *gorm.DB, username, passwordHash string, role domain.Role) (*domain.User, error)

	// GetUserByUsername returns repo.ErrNotFound when absent.
	GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error)

	// GetUserView projects {id, username, role}; repo.ErrNotFound when absent.
	GetUserView(ctx context.Context, db *gorm.DB, id uint) (*domain.UserView, error)
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(userID uint, role domain.Role) (string, error)
}

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=50" example:"alice"`
	Password string `json:"password" validate:"required,min=6,max=128" example:"secret1"`
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Username string `json:"username" validate:"required" example:"alice"`
	Password string `json:"password" validate:"required" example:"secret1"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	Token string `json:"token"`
}

// AuthService implements register, login and fetch-self.
type AuthService struct {
	DB     *gorm.DB
	Repo   UserRepo
	Tokens TokenIssuer

	// BcryptCost is the hashing work factor; <= 0 means DefaultBcryptCost.
	BcryptCost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService wires an AuthService with the given bcrypt cost.
func NewAuthService(db *gorm.DB, r UserRepo, tokens TokenIssuer, bcryptCost int) *AuthService {
	return &AuthService{DB: db, Repo: r, Tokens: tokens, BcryptCost: bcryptCost}
}

func (s *AuthService) cost() int {
	if s.BcryptCost <= 0 {
		return DefaultBcryptCost
	}
	return s.BcryptCost
}

// Register validates the input, hashes the password and creates a USER.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.UserView, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Register")
	defer span.End()

	in.Username = normalizeUsername(in.Username)
	if err := validateStruct(in); err != nil {
		authAttempts.WithLabelValues("register", "invalid").Inc()
		return nil, err
	}

	// Fast path for the common duplicate; the unique index still decides races.
	if _, err := s.Repo.GetUserByUsername(ctx, s.DB, in.Username); err == nil {
		authAttempts.WithLabelValues("register", "duplicate").Inc()
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, s.fail(span, "register", err)
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(in.Password), s.cost())
	if err != nil {
		return nil, s.fail(span, "register", err)
	}

	u, err := s.Repo.CreateUser(ctx, s.DB, in.Username, string(hash), domain.RoleUser)
	if errors.Is(err, repo.ErrDuplicate) {
		authAttempts.WithLabelValues("register", "duplicate").Inc()
		return nil, ErrDuplicateUsername
	}
	if err != nil {
		return nil, s.fail(span, "register", err)
	}

	span.SetAttributes(attribute.Int64("user.id", int64(u.ID)))
	authAttempts.WithLabelValues("register", "ok").Inc()
	v := u.View()
	return &v, nil
}

// Login checks the credentials and returns a signed session token. Unknown
// usernames and wrong passwords both yield ErrInvalidCredentials, and both
// pay for one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Login")
	defer span.End()

	in.Username = normalizeUsername(in.Username)
	if err := validateStruct(in); err != nil {
		authAttempts.WithLabelValues("login", "invalid").Inc()
		return nil, err
	}

	u, err := s.Repo.GetUserByUsername(ctx, s.DB, in.Username)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, s.fail(span, "login", err)
	}
	if u == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), bcryptInput(in.Password))
		authAttempts.WithLabelValues("login", "rejected").Inc()
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), bcryptInput(in.Password)); err != nil {
		authAttempts.WithLabelValues("login", "rejected").Inc()
		return nil, ErrInvalidCredentials
	}

	tok, err := s.Tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, s.fail(span, "login", err)
	}
	span.SetAttributes(attribute.Int64("user.id", int64(u.ID)))
	authAttempts.WithLabelValues("login", "ok").Inc()
	return &TokenResponse{Token: tok}, nil
}

// Me returns the public view of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID uint) (*domain.UserView, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Me",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))),
	)
	defer span.End()

	v, err := s.Repo.GetUserView(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, err
	}
	return v, nil
}

// dummy returns a hash at the service's cost, computed once, so unknown-user
// logins cost the same as real ones.
func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("meme-gallery/dummy-password"), s.cost())
		if err != nil {
			h, _ = bcrypt.GenerateFromPassword([]byte("meme-gallery/dummy-password"), DefaultBcryptCost)
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *AuthService) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	authAttempts.WithLabelValues(op, "error").Inc()
	return err
}

// normalizeUsername applies Unicode NFC so visually identical names compare
// equal in the unique index.
func normalizeUsername(s string) string {
	return norm.NFC.String(s)
}

// bcryptInput truncates to the bytes bcrypt actually uses; longer inputs
// would otherwise be rejected by GenerateFromPassword.
func bcryptInput(pw string) []byte {
	b := []byte(pw)
	if len(b) > bcryptMaxBytes {
		b = b[:bcryptMaxBytes]
	}
	return b
}
