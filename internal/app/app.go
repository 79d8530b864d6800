// Package app wires the engine's components from configuration.
package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/leozw/uptime-engine/internal/checks"
	"github.com/leozw/uptime-engine/internal/config"
	"github.com/leozw/uptime-engine/internal/metrics"
	"github.com/leozw/uptime-engine/internal/monitors"
	"github.com/leozw/uptime-engine/internal/scheduler"
	"github.com/leozw/uptime-engine/internal/storage"
	"github.com/leozw/uptime-engine/internal/storage/memory"
	"github.com/leozw/uptime-engine/internal/storage/postgres"
)

var ErrDatabaseRequired = errors.New("database.url is required")

type App struct {
	Config   *config.Config
	Store    storage.Store
	Executor *checks.Executor
	Metrics  *metrics.Collector
	Monitors *monitors.Service
}

// New builds the shared components. With requireDB unset and no database
// URL the in-memory store is used.
func New(ctx context.Context, cfg *config.Config, requireDB bool, logger *zap.Logger) (*App, error) {
	store, err := openStore(ctx, cfg.Database, requireDB, logger)
	if err != nil {
		return nil, err
	}

	var diagnoser *checks.Diagnoser
	if cfg.Probe.DNSDiagnostics {
		diagnoser = checks.NewDiagnoser(cfg.Probe.Resolver)
	}
	executor := checks.NewExecutor(checks.Options{
		HTTPTimeout: cfg.Probe.HTTPTimeout,
		PingTimeout: cfg.Probe.PingTimeout,
		Diagnoser:   diagnoser,
	}, logger.Named("checks"))

	collector := metrics.NewCollector(metrics.RemoteWriteConfig{
		URL:           cfg.Metrics.RemoteWriteURL,
		TenantHeader:  cfg.Metrics.TenantHeader,
		TenantID:      cfg.Metrics.TenantID,
		AuthToken:     cfg.Metrics.AuthToken,
		BatchSize:     cfg.Metrics.BatchSize,
		FlushInterval: cfg.Metrics.FlushInterval,
	}, logger.Named("metrics"))

	svc := monitors.NewService(store, executor, monitors.Options{
		WriteTimeout: cfg.Probe.WriteTimeout,
		Metrics:      collector,
	}, logger.Named("monitors"))

	return &App{
		Config:   cfg,
		Store:    store,
		Executor: executor,
		Metrics:  collector,
		Monitors: svc,
	}, nil
}

// Scheduler builds the interval scheduler over the app's store and service.
func (a *App) Scheduler(logger *zap.Logger) *scheduler.Scheduler {
	return scheduler.NewScheduler(a.Store, a.Monitors, a.Metrics, scheduler.Config{
		WorkerCount: a.Config.Scheduler.WorkerCount,
		Tick:        a.Config.Scheduler.Tick,
		RateLimit:   a.Config.Scheduler.RateLimit,
		BatchSize:   a.Config.Scheduler.BatchSize,
	}, logger.Named("scheduler"))
}

func (a *App) Close() error {
	return a.Store.Close()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, requireDB bool, logger *zap.Logger) (storage.Store, error) {
	if cfg.URL == "" {
		if requireDB {
			return nil, ErrDatabaseRequired
		}
		logger.Warn("No database configured, using in-memory store")
		return memory.New(), nil
	}
	return postgres.Open(ctx, cfg.URL, postgres.Options{
		MaxOpenConns: cfg.MaxConnections,
		MaxIdleConns: cfg.MaxIdleConns,
		Migrate:      cfg.Migrate,
	}, logger.Named("postgres"))
}
