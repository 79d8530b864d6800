package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/uptime-engine/internal/core"
)

// statusClientClosedRequest is logged when the caller hung up first.
const statusClientClosedRequest = 499

// writeError maps engine errors to HTTP responses. A failed append still
// returns the probe's classification so it is not lost.
func (h *Handler) writeError(c *gin.Context, err error) {
	var recErr *core.RecordError
	if errors.As(err, &recErr) {
		code := http.StatusServiceUnavailable
		if errors.Is(err, core.ErrNotFound) {
			code = http.StatusNotFound
		}
		c.JSON(code, gin.H{
			"error":  "Check completed but was not recorded",
			"result": recErr.Result,
		})
		return
	}

	switch {
	case errors.Is(err, core.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Monitor not found"})
	case errors.Is(err, core.ErrStorage):
		h.logger.Error("Storage failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable, retry later"})
	case errors.Is(err, context.Canceled):
		c.AbortWithStatus(statusClientClosedRequest)
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
	default:
		h.logger.Error("Unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
