package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"workforce/internal/logging"
)

// Context keys set by Required.
const (
	ContextClaims = "claims"
	ContextUserID = "userId"
)

// Required enforces bearer JWT tokens signed with HS256 by issuer. Refresh
// tokens are rejected.
func Required(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil || claims.Type == TypeRefresh {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ContextClaims, claims)
		c.Set(ContextUserID, claims.Subject)

		if logger := logging.FromContext(c.Request.Context()); logger != nil {
			ctx := logging.ContextWithLogger(c.Request.Context(), logger.With("user_id", claims.Subject))
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, if any.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextUserID)
	return id, id != ""
}

// ClaimsFrom returns the verified claims, if any.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}
