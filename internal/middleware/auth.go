package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"medibook/internal/config"
	"medibook/internal/models"
	"medibook/internal/utils"
)

const identityKey = "identity"

// AuthMiddleware creates a middleware for JWT authentication.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}
		if !authenticate(c, cfg, authHeader) {
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware authenticates a bearer token when one is sent and
// lets anonymous requests through. A token that is sent but invalid is
// still rejected.
func OptionalAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" && !authenticate(c, cfg, authHeader) {
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, cfg *config.Config, authHeader string) bool {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		utils.Unauthorized(c, "Invalid authorization header format")
		c.Abort()
		return false
	}

	claims, err := utils.ValidateToken(parts[1], cfg.JWTSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid or expired token")
		c.Abort()
		return false
	}

	// Set user information in context for downstream handlers
	c.Set(identityKey, claims.Identity())
	return true
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentityFromContext(c)
		if !ok {
			utils.Unauthorized(c, "User not authenticated")
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if identity.Role == allowedRole {
				c.Next()
				return
			}
		}

		utils.Forbidden(c, "You do not have permission to access this resource.")
		c.Abort()
	}
}

// GetIdentityFromContext returns the identity set by the auth middlewares.
func GetIdentityFromContext(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := value.(models.Identity)
	return identity, ok
}

// TokenFromQuery copies a token query parameter into the Authorization
// header. Browser websocket clients cannot set headers.
func TokenFromQuery(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.Query(param); token != "" && c.GetHeader("Authorization") == "" {
			c.Request.Header.Set("Authorization", "Bearer "+token)
		}
		c.Next()
	}
}
