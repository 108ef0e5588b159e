package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"paygate/internal/domain"
)

// InternalAuth guards the internal relay hop with the shared secret. It runs
// before any business logic; a missing or wrong secret is rejected outright.
// An empty configured secret disables the hop entirely rather than leaving it
// open.
func InternalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(domain.HeaderInternalAuth)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    domain.CodeUnauthorized,
					"message": "invalid internal auth",
				},
			})
			return
		}
		c.Next()
	}
}
