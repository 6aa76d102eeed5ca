// README: Shared-secret header auth for machine callers (backend order events, Telegram webhook).
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	HeaderAPIKey         = "X-API-Key"
	HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"
)

// SecretHeader rejects requests whose header does not carry secret.
// An empty secret disables the check.
func SecretHeader(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
