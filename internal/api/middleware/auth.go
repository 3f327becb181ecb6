package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware provides static bearer-token authentication. Devices and
// dashboards share one API token; there are no user accounts.
type AuthMiddleware struct {
	serverConfig *config.ServerConfig
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(serverConfig *config.ServerConfig) *AuthMiddleware {
	return &AuthMiddleware{
		serverConfig: serverConfig,
	}
}

// RequireToken ensures the configured bearer token is present. With no token
// configured (development) all requests pass.
func (am *AuthMiddleware) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.serverConfig.APIToken == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(am.serverConfig.APIToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Next()
	}
}
