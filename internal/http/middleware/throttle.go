package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meme-gallery/internal/throttle"
)

// AuthThrottle applies a shared fixed-window budget per client IP, typically
// in front of the credential endpoints. A nil limiter disables it.
//
// When the limiter backend is unavailable the request is let through and a
// warning is logged; the in-process RateLimiter still applies.
func AuthThrottle(l throttle.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		res, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("auth throttle unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			secs := int(math.Ceil(res.ResetIn.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			abortError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests")
			return
		}
		c.Next()
	}
}
