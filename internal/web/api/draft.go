package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartgreenhouse/internal/editor"
	"smartgreenhouse/internal/manager"
	"smartgreenhouse/internal/web/middleware"
)

func RegisterDraftRoutes(router *gin.Engine, mw *middleware.MiddlewareManager, mgr *manager.Manager) {
	r := router.Group("/draft")
	r.Use(mw.RequireSession())
	{
		r.POST("", func(c *gin.Context) {
			d, err := mgr.StartAdd()
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, d)
		})

		r.GET("", func(c *gin.Context) {
			d, ok := mgr.Draft()
			if !ok {
				respondError(c, editor.ErrNoDraft)
				return
			}
			c.JSON(http.StatusOK, d)
		})

		r.PATCH("", func(c *gin.Context) {
			var edits editor.Edits
			if err := c.ShouldBindJSON(&edits); err != nil {
				badRequest(c)
				return
			}
			d, err := mgr.EditDraft(edits)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, d)
		})

		r.POST("/save", func(c *gin.Context) {
			rule, err := mgr.SaveDraft(c)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, ruleView(mgr, rule))
		})

		r.DELETE("", func(c *gin.Context) {
			mgr.CancelDraft()
			c.Status(http.StatusNoContent)
		})
	}
}
