// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns:
// tracing, correlation IDs, logging/redaction, panic recovery, compression,
// metrics, rate limiting, CORS and security headers.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-meme-gallery/docs"
	"github.com/tbourn/go-meme-gallery/internal/config"
	"github.com/tbourn/go-meme-gallery/internal/domain"
	"github.com/tbourn/go-meme-gallery/internal/http/handlers"
	"github.com/tbourn/go-meme-gallery/internal/http/middleware"
	"github.com/tbourn/go-meme-gallery/internal/repo"
	"github.com/tbourn/go-meme-gallery/internal/services"
	"github.com/tbourn/go-meme-gallery/internal/throttle"
)

// maxBodyBytes caps request bodies. Auth and meme payloads are tiny.
const maxBodyBytes = 64 << 10

// userRepoShim adapts the repo free functions to services.UserRepo.
type userRepoShim struct{}

func (userRepoShim) CreateUser(ctx context.Context, db *gorm.DB, username, hash string, role domain.Role) (*domain.User, error) {
	return repo.CreateUser(ctx, db, username, hash, role)
}

func (userRepoShim) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return repo.GetUserByUsername(ctx, db, username)
}

func (userRepoShim) GetUserView(ctx context.Context, db *gorm.DB, id uint) (*domain.UserView, error) {
	return repo.GetUserView(ctx, db, id)
}

// memeRepoShim adapts the repo free functions to services.MemeRepo.
type memeRepoShim struct{}

func (memeRepoShim) CreateMeme(ctx context.Context, db *gorm.DB, userID uint, title, url string) (*domain.Meme, error) {
	return repo.CreateMeme(ctx, db, userID, title, url)
}

func (memeRepoShim) GetMeme(ctx context.Context, db *gorm.DB, id uint) (*domain.Meme, error) {
	return repo.GetMeme(ctx, db, id)
}

func (memeRepoShim) FindLike(ctx context.Context, db *gorm.DB, userID, memeID uint) (*domain.Like, error) {
	return repo.FindLike(ctx, db, userID, memeID)
}

func (memeRepoShim) CreateLike(ctx context.Context, db *gorm.DB, userID, memeID uint) (*domain.Like, error) {
	return repo.CreateLike(ctx, db, userID, memeID)
}

func (memeRepoShim) DeleteLike(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	return repo.DeleteLike(ctx, db, id)
}

// Tokens issues and verifies session tokens; *auth.TokenService satisfies it.
type Tokens interface {
	services.TokenIssuer
	middleware.TokenVerifier
}

// Deps carries the collaborators built by the entrypoint.
type Deps struct {
	Tokens Tokens
	// AuthLimiter is the shared budget for /auth/register and /auth/login.
	// Nil disables it.
	AuthLimiter throttle.Limiter
}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. gzip (skips /metrics, which negotiates its own encoding)
//  7. Metrics
//  8. Rate limiter per client IP
//  9. CORS and security headers
//
// Route groups add NoStore and AuthThrottle on /auth, and RequireAuth plus a
// per-user limiter on the guarded routes.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, deps Deps) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.Metrics())
	r.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP()).Handler())
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "Route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authSvc := services.NewAuthService(db, userRepoShim{}, deps.Tokens, cfg.Auth.BcryptCost)
	memeSvc := services.NewMemeService(db, memeRepoShim{})
	h := handlers.New(authSvc, memeSvc)

	guard := middleware.RequireAuth(deps.Tokens)
	perUser := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler()

	api := groupWithPrefix(r, cfg.APIBasePath)

	authGroup := api.Group("/auth", middleware.NoStore())
	{
		throttled := authGroup.Group("", middleware.AuthThrottle(deps.AuthLimiter))
		throttled.POST("/register", h.Register)
		throttled.POST("/login", h.Login)

		authGroup.GET("/me", guard, perUser, h.Me)
	}

	memes := api.Group("/memes", guard, perUser)
	{
		memes.POST("", h.CreateMeme)
		memes.POST("/:id/like", h.ToggleLike)
	}
}

// corsMiddleware returns the CORS handlers. With no allowlist every origin is
// accepted without credentials; otherwise only listed origins are echoed.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// ACAO: * even without an Origin header (simple health checks).
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps the request body at maxBytes using http.MaxBytesReader;
// oversized bodies fail JSON binding and get a 400.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
