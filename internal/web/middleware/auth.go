package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireSession rejects requests while no operator session is active.
func (m *MiddlewareManager) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := m.sessions.Current()
		if !s.LoggedIn() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set("user_id", s.UserID)

		c.Next()
	}
}
