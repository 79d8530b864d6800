package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leozw/uptime-engine/internal/app"
	"github.com/leozw/uptime-engine/internal/config"
	"github.com/leozw/uptime-engine/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Dir, "uptime-worker")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, true, logger)
	if err != nil {
		logger.Fatal("Failed to initialise", zap.Error(err))
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Metrics.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Scheduler(logger).Start(gctx)
		return nil
	})

	g.Go(func() error {
		a.Metrics.StartRemoteWrite(gctx)
		return nil
	})

	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	logger.Info("Worker started",
		zap.Int("worker_count", cfg.Scheduler.WorkerCount),
		zap.String("metrics_port", cfg.Metrics.Port),
	)

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", zap.Error(err))
	}
	logger.Info("Worker exited")
}
