package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/delivery/http/dto/transaction/response"
	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-API-Key"

// APIKeyAuth rejects requests whose X-API-Key is not one of keys. An empty
// key list disables the check.
func APIKeyAuth(keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}
		given := []byte(c.GetHeader(apiKeyHeader))
		for _, k := range keys {
			if subtle.ConstantTimeCompare(given, []byte(k)) == 1 {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Envelope{
			Error: &response.ErrorBody{Code: "UNAUTHORIZED", Message: "invalid or missing API key"},
		})
	}
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request completed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
