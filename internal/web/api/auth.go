package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartgreenhouse/internal/manager"
	"smartgreenhouse/internal/notify"
	"smartgreenhouse/internal/session"
	"smartgreenhouse/internal/web/middleware"
	webModels "smartgreenhouse/internal/web/models"
)

// SessionStore accepts a new operator session
type SessionStore interface {
	Login(ctx context.Context, s session.Session) error
}

func RegisterSessionRoutes(router *gin.Engine, mw *middleware.MiddlewareManager, mgr *manager.Manager, sessions SessionStore, inbox *notify.Inbox) {
	router.POST("/session", func(c *gin.Context) {
		var req webModels.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
		err := sessions.Login(c, session.Session{
			Token:     req.Token,
			Role:      req.Role,
			UserID:    req.UserID,
			ExpiresIn: req.ExpiresIn,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Data of a previous session must not leak into this one.
		mgr.Clear()
		// A failed greenhouse load is reported in the state, not as a login failure.
		_ = mgr.Start(c)
		c.JSON(http.StatusOK, stateResponse(mgr))
	})

	r := router.Group("")
	r.Use(mw.RequireSession())
	{
		r.POST("/logout", func(c *gin.Context) {
			if err := mgr.Logout(c); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear session"})
				return
			}
			c.Status(http.StatusNoContent)
		})

		r.GET("/notices", func(c *gin.Context) {
			notices := inbox.Drain()
			if notices == nil {
				notices = []notify.Notice{}
			}
			c.JSON(http.StatusOK, notices)
		})
	}
}
