// Package handlers exposes the REST endpoints:
//   - POST /auth/register
//   - POST /auth/login
//   - GET  /auth/me
//   - POST /memes
//   - POST /memes/{id}/like
//
// Handlers are transport-thin: they bind JSON, read the caller identity set
// by middleware.RequireAuth, call the services and translate results.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meme-gallery/internal/domain"
	"github.com/tbourn/go-meme-gallery/internal/http/middleware"
	"github.com/tbourn/go-meme-gallery/internal/services"
)

// AuthService is the account API consumed by the handlers.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*domain.UserView, error)
	Login(ctx context.Context, in services.LoginInput) (*services.TokenResponse, error)
	Me(ctx context.Context, userID uint) (*domain.UserView, error)
}

// MemeService is the meme API consumed by the handlers.
type MemeService interface {
	Create(ctx context.Context, ownerID uint, in services.CreateMemeInput) (*domain.Meme, error)
	ToggleLike(ctx context.Context, userID, memeID uint) (*services.LikeResult, error)
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	authSvc AuthService
	memeSvc MemeService
}

// New constructs Handlers bound to the given services.
func New(authSvc AuthService, memeSvc MemeService) *Handlers {
	return &Handlers{authSvc: authSvc, memeSvc: memeSvc}
}

// identity returns the caller set by RequireAuth. Routes reaching a handler
// without it are miswired; the request is answered with 401.
func identity(c *gin.Context) (domain.Identity, bool) {
	id, found := middleware.IdentityFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeMissingToken, msgUnauthenticated, nil)
	}
	return id, found
}
