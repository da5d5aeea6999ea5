package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quoteajob/quoteajob/internal/auth"
	"github.com/quoteajob/quoteajob/internal/models"
)

const (
	// ContextKeyUserID holds the key for user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyRole holds the key for the caller's role in Gin context.
	ContextKeyRole = "role"
)

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(token, jwtSecret)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRole, claims.Role)

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// hasValidSession reports whether the request carries a session token signed with secret.
func hasValidSession(c *gin.Context, secret string) bool {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok || secret == "" {
		return false
	}
	_, err := auth.ValidateJWT(token, secret)
	return err == nil
}

// AdminMiddleware rejects callers without the ADMIN role. Assumes AuthMiddleware runs first.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRole(c) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}

// CallerID returns the authenticated user ID, or "" on public routes.
func CallerID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// CallerRole returns the authenticated user's role, or "" on public routes.
func CallerRole(c *gin.Context) models.Role {
	role, _ := c.Get(ContextKeyRole)
	r, _ := role.(models.Role)
	return r
}
