package middleware

import (
	"net/http"

	"document-qa-platform/utils"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	secret string
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: secret}
}

// RequireAuth resolves the owner id from a Bearer token and rejects
// requests without a valid one.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error_code": "unauthorized",
				"message":    "Authentication token is required",
			})
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(tokenString, a.secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error_code": "invalid_token",
				"message":    "Authentication token is invalid or expired",
			})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// GetUserID retrieves the authenticated user id from context.
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
