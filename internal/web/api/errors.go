package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartgreenhouse/internal/authority"
	"smartgreenhouse/internal/editor"
	"smartgreenhouse/internal/manager"
	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/rules"
	"smartgreenhouse/internal/selector"
	"smartgreenhouse/internal/timespec"
)

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var verr *editor.ValidationError
	var apiErr *authority.Error
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid draft", "fields": verr.Fields})
	case errors.Is(err, rules.ErrRuleNotFound), errors.Is(err, selector.ErrUnknownGreenhouse):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, editor.ErrDraftActive), errors.Is(err, editor.ErrNoDraft), errors.Is(err, editor.ErrNoGreenhouse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, editor.ErrFieldNotAllowed), errors.Is(err, models.ErrUnknownKind),
		errors.Is(err, models.ErrBadShape), errors.Is(err, manager.ErrNotTimeRule):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, manager.ErrNotLoaded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, timespec.ErrUnrecognized):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, authority.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Authority rejected the request", "status": apiErr.Status})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
}
