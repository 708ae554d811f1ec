package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lireddit/backend/internal/auth"
)

const (
	// ContextUserIDKey is the gin context key holding the authenticated
	// user's id.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey holds the authenticated username.
	ContextUsernameKey = "username"
)

// RequireAuth rejects requests without a valid Bearer token and stores the
// caller's identity in the gin context.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, secret)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

// OptionalAuth stores the caller's identity when a valid Bearer token is
// present and lets the request through either way. Public read endpoints use
// it so responses can still carry viewer-specific fields.
func OptionalAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, secret); ok {
			c.Set(ContextUserIDKey, claims.UserID)
			c.Set(ContextUsernameKey, claims.Username)
		}
		c.Next()
	}
}

// UserID returns the authenticated user's id, or zero for anonymous
// requests.
func UserID(c *gin.Context) int {
	if v, ok := c.Get(ContextUserIDKey); ok {
		if id, ok := v.(int); ok {
			return id
		}
	}
	return 0
}

func bearerClaims(c *gin.Context, secret []byte) (*auth.Claims, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return nil, false
	}
	claims, err := auth.ParseToken(secret, token)
	if err != nil {
		return nil, false
	}
	return claims, true
}
