// internal/interfaces/http/middleware/auth.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/inventory-ledger/internal/config"
	"github.com/your-org/inventory-ledger/internal/pkg/auth"
)

const (
	ctxUserID     = "user_id"
	ctxUserEmail  = "user_email"
	ctxUserRole   = "user_role"
	ctxClaims     = "token_claims"
	systemActorID = "system"
)

// AuthMiddleware creates JWT authentication middleware
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	jwtManager := auth.NewJWTManager(cfg)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		tokenString := auth.ExtractTokenFromHeader(authHeader)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserEmail, claims.Email)
		c.Set(ctxUserRole, claims.Role)
		c.Set(ctxClaims, claims)

		c.Next()
	}
}

// RequireRoles lets the request through only if the token role is one of roles
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		role, exists := c.Get(ctxUserRole)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			c.Abort()
			return
		}

		if _, ok := allowed[role.(string)]; !ok {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Insufficient role for this operation",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserIDFromContext extracts user ID from gin context
func GetUserIDFromContext(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}
	return userID.(uint), true
}

// GetActorFromContext returns the name to record for the authenticated user
func GetActorFromContext(c *gin.Context) string {
	claims, exists := c.Get(ctxClaims)
	if !exists {
		return systemActorID
	}
	return claims.(*auth.Claims).Actor()
}
