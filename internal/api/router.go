package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/uptime-engine/internal/api/handlers"
	"github.com/leozw/uptime-engine/internal/api/middleware"
	"github.com/leozw/uptime-engine/internal/metrics"
	"github.com/leozw/uptime-engine/internal/monitors"
)

type Options struct {
	Mode         string
	TriggerRate  float64
	TriggerBurst int
}

type Server struct {
	Router *gin.Engine
}

func NewServer(opts Options, svc *monitors.Service, store handlers.Pinger, verifier middleware.TokenVerifier, collector *metrics.Collector, logger *zap.Logger) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	router := gin.New()

	var observer middleware.RequestObserver
	if collector != nil {
		observer = collector
	}

	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger, observer))
	router.Use(middleware.CORS())

	h := handlers.NewHandler(svc, store, logger)

	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	if collector != nil {
		router.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.AuthRequired(verifier, logger))
	{
		api.GET("/monitors", h.ListMonitors)
		api.POST("/monitors", h.CreateMonitor)
		api.GET("/monitors/:id", h.GetMonitor)
		api.DELETE("/monitors/:id", h.DeleteMonitor)
		api.POST("/monitors/:id/check",
			middleware.RateLimit(middleware.NewOwnerLimiter(opts.TriggerRate, opts.TriggerBurst)),
			h.TriggerCheck,
		)
		api.GET("/monitors/:id/history", h.GetHistory)
		api.GET("/monitors/:id/status", h.GetStatus)
	}

	return &Server{Router: router}
}
