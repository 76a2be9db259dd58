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

func RegisterGreenhouseRoutes(router *gin.Engine, mw *middleware.MiddlewareManager, mgr *manager.Manager) {
	r := router.Group("")
	r.Use(mw.RequireSession())
	{
		r.GET("/state", func(c *gin.Context) {
			c.JSON(http.StatusOK, stateResponse(mgr))
		})

		r.GET("/greenhouses", func(c *gin.Context) {
			list, err := mgr.Greenhouses()
			if err != nil {
				respondError(c, err)
				return
			}
			if list == nil {
				list = []models.Greenhouse{}
			}
			c.JSON(http.StatusOK, list)
		})

		r.POST("/greenhouses/:id/select", func(c *gin.Context) {
			id, err := strconv.Atoi(c.Param("id"))
			if err != nil {
				badRequest(c)
				return
			}
			if err := mgr.Select(c, id); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, stateResponse(mgr))
		})

		r.POST("/reload", func(c *gin.Context) {
			if err := mgr.Reload(c); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, stateResponse(mgr))
		})

		r.GET("/components", func(c *gin.Context) {
			if !requireLoaded(c, mgr) {
				return
			}
			sensors, actuators := mgr.Components()
			c.JSON(http.StatusOK, webModels.ComponentsResponse{
				Sensors:   nonNil(sensors),
				Actuators: nonNil(actuators),
			})
		})
	}
}

// requireLoaded answers 503 while the active greenhouse's data is loading
// or failed to load.
func requireLoaded(c *gin.Context, mgr *manager.Manager) bool {
	state := mgr.LoadState()
	if state.Loaded {
		return true
	}
	body := gin.H{"error": "Greenhouse data not loaded", "loading": state.Loading}
	if state.Err != nil {
		body["cause"] = state.Err.Error()
	}
	c.JSON(http.StatusServiceUnavailable, body)
	return false
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func stateResponse(mgr *manager.Manager) webModels.StateResponse {
	list, ghErr := mgr.Greenhouses()
	resp := webModels.StateResponse{Greenhouses: nonNil(list)}
	if ghErr != nil {
		resp.GreenhousesError = ghErr.Error()
	}
	if id, ok := mgr.Active(); ok {
		resp.ActiveGreenhouse = &id
	}

	load := mgr.LoadState()
	resp.Load = webModels.LoadView{GreenhouseID: load.GreenhouseID, Loading: load.Loading, Loaded: load.Loaded}
	if load.Err != nil {
		resp.Load.Error = load.Err.Error()
	}

	state, ruleID := mgr.Editor().State()
	resp.Editor = webModels.EditorView{State: state.String(), RuleID: ruleID}
	if d, ok := mgr.Draft(); ok {
		resp.Editor.Draft = &d
	}
	return resp
}
