package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"paygate/config"
	"paygate/internal/auth"
	"paygate/internal/domain"
)

// ProviderAuth validates the dashboard JWT and sets the provider identity in
// the context.
func ProviderAuth(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, err := auth.ParseToken(cfg, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set("provider_id", claims.ProviderID)
		c.Set("provider_email", claims.Email)
		c.Next()
	}
}

// GetProviderID returns the authenticated provider ID (after ProviderAuth).
func GetProviderID(c *gin.Context) uint {
	v, _ := c.Get("provider_id")
	if v == nil {
		return 0
	}
	return v.(uint)
}

// RequireDeveloperAddress enforces the developer identity header on call
// endpoints and stashes it for handlers.
func RequireDeveloperAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := strings.TrimSpace(c.GetHeader(domain.HeaderDeveloperAddress))
		if addr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    domain.CodeUnauthorized,
					"message": domain.HeaderDeveloperAddress + " header is required",
				},
			})
			return
		}
		c.Set("developer_address", addr)
		c.Next()
	}
}

// GetDeveloperAddress returns the developer identity set by
// RequireDeveloperAddress.
func GetDeveloperAddress(c *gin.Context) string {
	v, _ := c.Get("developer_address")
	if v == nil {
		return ""
	}
	return v.(string)
}
