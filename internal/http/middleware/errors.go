package middleware

import "github.com/gin-gonic/gin"

// abortError stops the chain with the JSON error envelope shared with the
// handlers package:
//
//	{ "request_id": "...", "code": "<code>", "error": "<message>" }
func abortError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       code,
		"error":      msg,
	})
}
