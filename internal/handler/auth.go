package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const jobTokenHeader = "X-Job-Token"

// JobAuth guards the scheduled-trigger endpoints with a shared secret. In
// release mode an unset secret rejects every call rather than leaving the
// triggers open.
func JobAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			if gin.Mode() == gin.ReleaseMode {
				slog.Error("job trigger rejected, no job token configured")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Job auth not configured"})
				return
			}
			c.Next()
			return
		}

		token := c.GetHeader(jobTokenHeader)
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
