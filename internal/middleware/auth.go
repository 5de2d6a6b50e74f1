package middleware

import (
	"errors"
	"net/http"
	"strings"

	"pride/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// SessionKey is the gin context key holding the caller's *session.Session.
const SessionKey = "session"

// AuthMiddleware creates a Gin middleware that resolves the Bearer token to a
// live session.
func AuthMiddleware(sessions *session.Manager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer <token>"})
			c.Abort()
			return
		}

		s, err := sessions.Authenticate(parts[1])
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			case errors.Is(err, session.ErrSessionNotFound):
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Session ended, please log in again"})
			default:
				logger.Debug("Invalid JWT token", zap.Error(err))
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			c.Abort()
			return
		}

		c.Set(SessionKey, s)
		c.Set("username", s.Username)

		c.Next()
	}
}

// CurrentSession returns the session set by AuthMiddleware.
func CurrentSession(c *gin.Context) *session.Session {
	return c.MustGet(SessionKey).(*session.Session)
}
