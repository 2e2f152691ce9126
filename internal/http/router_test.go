package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meme-gallery/internal/auth"
	"github.com/tbourn/go-meme-gallery/internal/config"
	"github.com/tbourn/go-meme-gallery/internal/repo"
	"github.com/tbourn/go-meme-gallery/internal/throttle"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/",
		RateRPS:     1000,
		RateBurst:   1000,
		Auth:        config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config, limiter throttle.Limiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, auth.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), cfg, Deps{Tokens: tokens, AuthLimiter: limiter})
	return r
}

type response struct {
	code   int
	header http.Header
	body   map[string]any
	raw    string
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			buf, _ := json.Marshal(b)
			rd = bytes.NewReader(buf)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	return response{code: w.Code, header: w.Header(), body: m, raw: w.Body.String()}
}

func login(t *testing.T, r http.Handler, user, pw string) string {
	t.Helper()
	res := call(t, r, http.MethodPost, "/auth/login", "", map[string]string{"username": user, "password": pw})
	if res.code != http.StatusOK {
		t.Fatalf("login %s: %d %s", user, res.code, res.raw)
	}
	tok, _ := res.body["token"].(string)
	if tok == "" {
		t.Fatalf("no token in %s", res.raw)
	}
	return tok
}

func TestEndToEnd_RegisterLoginMemeLikeToggle(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)

	res := call(t, r, http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "password": "secret1"})
	if res.code != http.StatusCreated || res.body["username"] != "alice" || res.body["role"] != "USER" {
		t.Fatalf("register: %d %s", res.code, res.raw)
	}
	if strings.Contains(res.raw, "password") || strings.Contains(res.raw, "$2a$") {
		t.Fatalf("register leaked credentials: %s", res.raw)
	}
	if res.header.Get("Cache-Control") != "no-store" {
		t.Fatalf("auth response cacheable: %v", res.header)
	}

	tok := login(t, r, "alice", "secret1")

	res = call(t, r, http.MethodGet, "/auth/me", tok, nil)
	if res.code != http.StatusOK || res.body["username"] != "alice" || res.body["id"] != float64(1) {
		t.Fatalf("me: %d %s", res.code, res.raw)
	}
	if _, ok := res.body["password_hash"]; ok {
		t.Fatalf("me leaked hash: %s", res.raw)
	}

	res = call(t, r, http.MethodPost, "/memes", tok, map[string]string{"title": "cat", "url": "https://x/y.png"})
	if res.code != http.StatusCreated || res.body["id"] != float64(1) || res.body["userId"] != float64(1) {
		t.Fatalf("create meme: %d %s", res.code, res.raw)
	}

	for i, want := range []string{"Meme liked", "Meme unliked", "Meme liked"} {
		res = call(t, r, http.MethodPost, "/memes/1/like", tok, nil)
		if res.code != http.StatusOK || res.body["message"] != want {
			t.Fatalf("toggle #%d: %d %s; want %q", i+1, res.code, res.raw, want)
		}
	}
}

func TestLikesArePerUser(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)
	for _, u := range []string{"alice", "bob01"} {
		if res := call(t, r, http.MethodPost, "/auth/register", "", map[string]string{"username": u, "password": "secret1"}); res.code != http.StatusCreated {
			t.Fatalf("register %s: %d", u, res.code)
		}
	}
	alice, bob := login(t, r, "alice", "secret1"), login(t, r, "bob01", "secret1")
	if res := call(t, r, http.MethodPost, "/memes", alice, map[string]string{"title": "dog", "url": "https://x/d.png"}); res.code != http.StatusCreated {
		t.Fatalf("create meme: %d", res.code)
	}

	if res := call(t, r, http.MethodPost, "/memes/1/like", alice, nil); res.body["message"] != "Meme liked" {
		t.Fatalf("alice like: %s", res.raw)
	}
	// Bob's toggle is independent of Alice's like.
	if res := call(t, r, http.MethodPost, "/memes/1/like", bob, nil); res.body["message"] != "Meme liked" {
		t.Fatalf("bob like: %s", res.raw)
	}
}

func TestGuardedRoutes_RequireToken(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)

	other, _ := auth.NewTokenService("other-secret")
	forged, _ := other.Issue(1, "USER")

	cases := []struct {
		method, path, token, code string
	}{
		{http.MethodGet, "/auth/me", "", "missing_token"},
		{http.MethodPost, "/memes", "", "missing_token"},
		{http.MethodPost, "/memes/1/like", "", "missing_token"},
		{http.MethodPost, "/memes", "garbage", "invalid_token"},
		{http.MethodGet, "/auth/me", forged, "invalid_token"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path+" "+tc.code, func(t *testing.T) {
			res := call(t, r, tc.method, tc.path, tc.token, map[string]string{"title": "t", "url": "https://x"})
			if res.code != http.StatusUnauthorized || res.body["code"] != tc.code {
				t.Fatalf("got %d %s", res.code, res.raw)
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)
	if res := call(t, r, http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "password": "secret1"}); res.code != http.StatusCreated {
		t.Fatalf("register: %d", res.code)
	}
	tok := login(t, r, "alice", "secret1")

	t.Run("duplicate username", func(t *testing.T) {
		res := call(t, r, http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "password": "other12"})
		if res.code != http.StatusConflict || res.body["error"] != "Username already exists" {
			t.Fatalf("got %d %s", res.code, res.raw)
		}
	})

	t.Run("register validation", func(t *testing.T) {
		res := call(t, r, http.MethodPost, "/auth/register", "", map[string]string{"username": "al", "password": "secret1"})
		if res.code != http.StatusBadRequest || res.body["code"] != "bad_request" {
			t.Fatalf("got %d %s", res.code, res.raw)
		}
	})

	t.Run("bad logins are indistinguishable", func(t *testing.T) {
		wrongPw := call(t, r, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "wrong12"})
		noUser := call(t, r, http.MethodPost, "/auth/login", "", map[string]string{"username": "nobody", "password": "wrong12"})
		if wrongPw.code != http.StatusUnauthorized || noUser.code != http.StatusUnauthorized {
			t.Fatalf("codes %d %d", wrongPw.code, noUser.code)
		}
		if wrongPw.body["code"] != noUser.body["code"] || wrongPw.body["error"] != noUser.body["error"] {
			t.Fatalf("bodies differ: %s vs %s", wrongPw.raw, noUser.raw)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		res := call(t, r, http.MethodPost, "/auth/login", "", `{"username":`)
		if res.code != http.StatusBadRequest || res.body["error"] != "Invalid JSON body" {
			t.Fatalf("got %d %s", res.code, res.raw)
		}
	})

	t.Run("meme validation", func(t *testing.T) {
		res := call(t, r, http.MethodPost, "/memes", tok, map[string]string{"title": "cat", "url": "not a url"})
		if res.code != http.StatusBadRequest || res.body["error"] != `"url" must be a valid uri` {
			t.Fatalf("got %d %s", res.code, res.raw)
		}
	})

	t.Run("like missing meme", func(t *testing.T) {
		res := call(t, r, http.MethodPost, "/memes/999/like", tok, nil)
		if res.code != http.StatusNotFound || res.body["error"] != "Meme not found" {
			t.Fatalf("got %d %s", res.code, res.raw)
		}
	})

	t.Run("like invalid id", func(t *testing.T) {
		res := call(t, r, http.MethodPost, "/memes/abc/like", tok, nil)
		if res.code != http.StatusBadRequest || res.body["code"] != "invalid_id" {
			t.Fatalf("got %d %s", res.code, res.raw)
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		big := `{"title":"` + strings.Repeat("a", maxBodyBytes) + `","url":"https://x"}`
		res := call(t, r, http.MethodPost, "/memes", tok, big)
		if res.code != http.StatusBadRequest {
			t.Fatalf("got %d", res.code)
		}
	})
}

func TestRegisterRoutes_Health_Metrics_Fallbacks_CORS(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)

	res := call(t, r, http.MethodGet, "/health", "", nil)
	if res.code != http.StatusOK || res.body["status"] != "ok" {
		t.Fatalf("health: %d %s", res.code, res.raw)
	}
	if res.header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("ACAO = %q", res.header.Get("Access-Control-Allow-Origin"))
	}
	if res.header.Get("X-Request-ID") == "" || res.header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing pipeline headers: %v", res.header)
	}

	res = call(t, r, http.MethodGet, "/metrics", "", nil)
	if res.code != http.StatusOK || !strings.Contains(res.raw, "http_requests_total") {
		t.Fatalf("metrics: %d", res.code)
	}

	res = call(t, r, http.MethodGet, "/nope", "", nil)
	if res.code != http.StatusNotFound || res.body["code"] != "not_found" {
		t.Fatalf("404: %d %s", res.code, res.raw)
	}
	res = call(t, r, http.MethodGet, "/memes", "", nil)
	if res.code != http.StatusMethodNotAllowed || res.body["code"] != "method_not_allowed" {
		t.Fatalf("405: %d %s", res.code, res.raw)
	}

	if res := call(t, r, http.MethodGet, "/swagger/doc.json", "", nil); res.code != http.StatusNotFound {
		t.Fatalf("swagger served while disabled: %d", res.code)
	}
}

func TestRegisterRoutes_BasePath_Swagger_CORSAllowlist(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v1"
	cfg.SwaggerEnabled = true
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r := newTestRouter(t, cfg, nil)

	res := call(t, r, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "carol", "password": "secret1"})
	if res.code != http.StatusCreated {
		t.Fatalf("prefixed register: %d %s", res.code, res.raw)
	}
	if res := call(t, r, http.MethodPost, "/auth/register", "", map[string]string{"username": "dave1", "password": "secret1"}); res.code != http.StatusNotFound {
		t.Fatalf("unprefixed route should 404, got %d", res.code)
	}

	if res := call(t, r, http.MethodGet, "/swagger/doc.json", "", nil); res.code != http.StatusOK || !strings.Contains(res.raw, "/memes/{id}/like") {
		t.Fatalf("swagger doc: %d", res.code)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

type denyAll struct{ calls int }

func (d *denyAll) Allow(context.Context, string) (throttle.Result, error) {
	d.calls++
	return throttle.Result{Allowed: false, Limit: 20, ResetIn: 30 * time.Second}, nil
}

func TestAuthThrottle_OnlyOnCredentialEndpoints(t *testing.T) {
	lim := &denyAll{}
	r := newTestRouter(t, testConfig(), lim)

	res := call(t, r, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "secret1"})
	if res.code != http.StatusTooManyRequests || res.header.Get("Retry-After") != "30" || res.body["code"] != "rate_limited" {
		t.Fatalf("login throttle: %d %v %s", res.code, res.header, res.raw)
	}
	res = call(t, r, http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "password": "secret1"})
	if res.code != http.StatusTooManyRequests {
		t.Fatalf("register throttle: %d", res.code)
	}

	// /auth/me is guarded, not throttled.
	before := lim.calls
	if res := call(t, r, http.MethodGet, "/auth/me", "", nil); res.code != http.StatusUnauthorized || lim.calls != before {
		t.Fatalf("me: %d calls=%d", res.code, lim.calls-before)
	}
}

func TestRateLimit_429Envelope(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 2
	r := newTestRouter(t, cfg, nil)

	if res := call(t, r, http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "password": "secret1"}); res.code != http.StatusCreated {
		t.Fatalf("register: %d", res.code)
	}
	tok := login(t, r, "alice", "secret1")

	res := call(t, r, http.MethodGet, "/auth/me", tok, nil)
	if res.code != http.StatusTooManyRequests || res.body["code"] != "rate_limited" || res.body["error"] != "Too many requests" {
		t.Fatalf("expected 429, got %d %s", res.code, res.raw)
	}
	if res.header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
