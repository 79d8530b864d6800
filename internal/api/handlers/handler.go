package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/uptime-engine/internal/api/middleware"
	"github.com/leozw/uptime-engine/internal/core"
	"github.com/leozw/uptime-engine/internal/monitors"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	monitors *monitors.Service
	store    Pinger
	logger   *zap.Logger
}

func NewHandler(svc *monitors.Service, store Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		monitors: svc,
		store:    store,
		logger:   logger,
	}
}

func owner(c *gin.Context) core.Identity {
	return core.Identity(c.GetString(middleware.OwnerKey))
}
