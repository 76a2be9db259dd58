package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartgreenhouse/internal/manager"
	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/web/middleware"
	webModels "smartgreenhouse/internal/web/models"
)

func RegisterRuleRoutes(router *gin.Engine, mw *middleware.MiddlewareManager, mgr *manager.Manager) {
	r := router.Group("/rules")
	r.Use(mw.RequireSession())
	{
		r.GET("", func(c *gin.Context) {
			if !requireLoaded(c, mgr) {
				return
			}
			list := mgr.Rules()
			views := make([]webModels.RuleView, 0, len(list))
			for _, rule := range list {
				views = append(views, ruleView(mgr, rule))
			}
			c.JSON(http.StatusOK, views)
		})

		r.DELETE("/:id", func(c *gin.Context) {
			id, ok := ruleID(c)
			if !ok {
				return
			}
			confirmed, _ := strconv.ParseBool(c.Query("confirm"))
			deleted, err := mgr.Delete(c, id, confirmed)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"deleted": deleted})
		})

		r.POST("/:id/toggle", func(c *gin.Context) {
			id, ok := ruleID(c)
			if !ok {
				return
			}
			var req webModels.ToggleRequest
			if c.Request.ContentLength != 0 {
				if err := c.ShouldBindJSON(&req); err != nil {
					badRequest(c)
					return
				}
			}
			var (
				rule models.Rule
				err  error
			)
			if req.Enabled != nil {
				rule, err = mgr.Toggle(c, id, *req.Enabled)
			} else {
				rule, err = mgr.Flip(c, id)
			}
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, ruleView(mgr, rule))
		})

		r.GET("/:id/next", func(c *gin.Context) {
			id, ok := ruleID(c)
			if !ok {
				return
			}
			preview, err := mgr.NextFiring(id)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, preview)
		})

		r.POST("/:id/edit", func(c *gin.Context) {
			id, ok := ruleID(c)
			if !ok {
				return
			}
			d, err := mgr.StartEdit(id)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, d)
		})
	}
}

func ruleID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c)
		return 0, false
	}
	return id, true
}

func ruleView(mgr *manager.Manager, rule models.Rule) webModels.RuleView {
	v := webModels.RuleView{Rule: rule, ToName: mgr.Cache().DisplayName(rule.ToComponentID)}
	if rule.FromComponentID != models.NoComponent {
		v.FromName = mgr.Cache().DisplayName(rule.FromComponentID)
	}
	return v
}
