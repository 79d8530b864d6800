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

	"go.uber.org/zap"

	"github.com/leozw/uptime-engine/internal/api"
	"github.com/leozw/uptime-engine/internal/app"
	"github.com/leozw/uptime-engine/internal/config"
	"github.com/leozw/uptime-engine/internal/logging"
	"github.com/leozw/uptime-engine/pkg/identity"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Dir, "uptime-api")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, false, logger)
	if err != nil {
		logger.Fatal("Failed to initialise", zap.Error(err))
	}
	defer a.Close()

	verifier := identity.NewVerifier(identity.Options{
		Secret:  cfg.Auth.JWTSecret,
		JWKSURL: cfg.Auth.JWKSURL,
		Issuer:  cfg.Auth.Issuer,
	}, logger.Named("identity"))

	server := api.NewServer(api.Options{
		Mode:         cfg.Server.Mode,
		TriggerRate:  cfg.Server.TriggerRate,
		TriggerBurst: cfg.Server.TriggerBurst,
	}, a.Monitors, a.Store, verifier, a.Metrics, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Scheduler.Enabled {
		sched := a.Scheduler(logger)
		go sched.Start(ctx)
	}
	go a.Metrics.StartRemoteWrite(ctx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("API server started", zap.String("port", cfg.Server.Port))

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
