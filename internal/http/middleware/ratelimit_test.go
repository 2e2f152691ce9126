package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyFuncs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if got := KeyByIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("KeyByIP = %q", got)
	}
	if got := KeyByUserOrIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("KeyByUserOrIP without user = %q", got)
	}
	c.Set(userIDKey, "42")
	if got := KeyByUserOrIP()(c); got != "user:42" {
		t.Fatalf("KeyByUserOrIP with user = %q", got)
	}
	if got := KeyByIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("KeyByIP must ignore the user, got %q", got)
	}
}

func TestNewRateLimiter_Defaults_AndVisitorReuse(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, KeyByIP())
	if rl.burst != 1 || rl.retryAfter != "1" {
		t.Fatalf("burst=%d retryAfter=%q", rl.burst, rl.retryAfter)
	}
	if slow := NewRateLimiter(0.1, 1, KeyByIP()); slow.retryAfter != "10" {
		t.Fatalf("retryAfter for 0.1 rps = %q; want 10", slow.retryAfter)
	}
	if closed := NewRateLimiter(0, 1, KeyByIP()); closed.retryAfter != "60" {
		t.Fatalf("retryAfter for 0 rps = %q; want 60", closed.retryAfter)
	}

	lim := rl.getVisitor("k1")
	if got := rl.getVisitor("k1"); got != lim {
		t.Fatalf("expected same limiter instance to be reused")
	}
}

func TestRateLimiter_getVisitor_GC(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyByIP())
	rl.ttl = time.Nanosecond

	rl.mu.Lock()
	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.cleanupN = 4999
	rl.mu.Unlock()

	_ = rl.getVisitor("new")

	rl.mu.Lock()
	_, existsOld := rl.visitors["old"]
	_, existsNew := rl.visitors["new"]
	rl.mu.Unlock()
	if existsOld || !existsNew {
		t.Fatalf("old=%v new=%v; want old evicted, new present", existsOld, existsNew)
	}
}

func TestRateLimiter_Handler_AllowDeny_PerKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1.0, 1, KeyByIP())

	r := gin.New()
	r.Use(RequestID())
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	do := func(ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.RemoteAddr = net.JoinHostPort(ip, "1")
		req.Header.Set("X-Request-ID", "rid-1")
		r.ServeHTTP(w, req)
		return w
	}

	if w := do("198.51.100.1"); w.Code != http.StatusOK {
		t.Fatalf("first request should be allowed, got %d", w.Code)
	}
	w := do("198.51.100.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be rate-limited, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After=1, got %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "rate_limited" || body["error"] != "Too many requests" || body["request_id"] != "rid-1" {
		t.Fatalf("unexpected JSON body: %v", body)
	}

	// Another client has its own bucket.
	if w := do("198.51.100.2"); w.Code != http.StatusOK {
		t.Fatalf("other client should be allowed, got %d", w.Code)
	}
}
