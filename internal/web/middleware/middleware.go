package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartgreenhouse/internal/session"
	"smartgreenhouse/internal/utils"
)

// SessionSource exposes the operator session
type SessionSource interface {
	Current() session.Session
}

type MiddlewareManager struct {
	sessions SessionSource
	logger   *zap.Logger
}

func NewMiddlewareManager(sessions SessionSource, logger *zap.Logger) *MiddlewareManager {
	return &MiddlewareManager{
		sessions: sessions,
		logger:   utils.OrNop(logger),
	}
}

// RequestLogger logs one line per request
func (m *MiddlewareManager) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
