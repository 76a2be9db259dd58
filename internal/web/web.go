package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartgreenhouse/internal/manager"
	"smartgreenhouse/internal/metrics"
	"smartgreenhouse/internal/notify"
	"smartgreenhouse/internal/session"
	"smartgreenhouse/internal/utils"
	"smartgreenhouse/internal/web/api"
	"smartgreenhouse/internal/web/middleware"
)

// Sessions is what the console needs from the session keeper
type Sessions interface {
	middleware.SessionSource
	api.SessionStore
}

type WebServer struct {
	router *gin.Engine
	server *http.Server
	logger *zap.Logger
}

func NewWebServer(mgr *manager.Manager, sessions Sessions, inbox *notify.Inbox, m *metrics.Metrics, logger *zap.Logger) *WebServer {
	logger = utils.OrNop(logger)
	router := gin.New()
	router.Use(gin.Recovery())

	middlewareManager := middleware.NewMiddlewareManager(sessions, logger)
	router.Use(middlewareManager.RequestLogger())

	api.RegisterSessionRoutes(router, middlewareManager, mgr, sessions, inbox)
	api.RegisterGreenhouseRoutes(router, middlewareManager, mgr)
	api.RegisterRuleRoutes(router, middlewareManager, mgr)
	api.RegisterDraftRoutes(router, middlewareManager, mgr)

	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	return &WebServer{
		router: router,
		server: &http.Server{Handler: router},
		logger: logger,
	}
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves on addr until Shutdown is called.
func (ws *WebServer) Start(addr string) error {
	ws.server.Addr = addr
	ws.logger.Info("Console API listening", zap.String("addr", addr))
	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

var _ Sessions = (*session.Keeper)(nil)
