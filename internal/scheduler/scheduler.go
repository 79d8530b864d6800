// Package scheduler triggers checks for monitors whose interval has elapsed.
// It coordinates a single process only.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/leozw/uptime-engine/internal/core"
)

// Source lists monitors that are due for a check.
type Source interface {
	DueMonitors(ctx context.Context, now time.Time, limit int) ([]*core.Monitor, error)
}

// Recorder probes a monitor and persists the result.
type Recorder interface {
	Record(ctx context.Context, m *core.Monitor) (*core.CheckResult, error)
}

// DropCounter is told about jobs dropped because the queue was full.
type DropCounter interface {
	SchedulerDropped()
}

type Config struct {
	WorkerCount int
	Tick        time.Duration
	// RateLimit is the maximum checks started per second across all workers.
	RateLimit float64
	BatchSize int
	QueueSize int
}

type Scheduler struct {
	source   Source
	recorder Recorder
	dropped  DropCounter
	limiter  *rate.Limiter
	logger   *zap.Logger
	config   Config
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

func NewScheduler(source Source, recorder Recorder, dropped DropCounter, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Second
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = cfg.BatchSize
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		source:   source,
		recorder: recorder,
		dropped:  dropped,
		limiter:  rate.NewLimiter(limit, cfg.WorkerCount),
		logger:   logger,
		config:   cfg,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// Start blocks until ctx is done, then waits for running checks to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler",
		zap.Int("worker_count", s.config.WorkerCount),
		zap.Duration("tick", s.config.Tick),
	)

	workQueue := make(chan *CheckJob, s.config.QueueSize)
	for i := 0; i < s.config.WorkerCount; i++ {
		worker := NewWorker(i, workQueue, s.limiter, s.recorder, s.release, s.logger)
		s.wg.Add(1)
		go func(w *Worker) {
			defer s.wg.Done()
			w.Start(ctx)
		}(worker)
	}

	ticker := time.NewTicker(s.config.Tick)
	defer ticker.Stop()

	s.scheduleChecks(ctx, workQueue)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping scheduler")
			close(workQueue)
			s.wg.Wait()
			return
		case <-ticker.C:
			s.scheduleChecks(ctx, workQueue)
		}
	}
}

func (s *Scheduler) scheduleChecks(ctx context.Context, workQueue chan<- *CheckJob) {
	monitors, err := s.source.DueMonitors(ctx, s.now().UTC(), s.config.BatchSize)
	if err != nil {
		s.logger.Error("Failed to get monitors to check", zap.Error(err))
		return
	}

	for _, monitor := range monitors {
		if !s.claim(monitor.ID) {
			continue
		}

		select {
		case workQueue <- &CheckJob{Monitor: monitor, ScheduledAt: s.now()}:
			s.logger.Debug("Scheduled check", zap.String("monitor_id", monitor.ID))
		default:
			s.release(monitor.ID)
			if s.dropped != nil {
				s.dropped.SchedulerDropped()
			}
			s.logger.Warn("Work queue full, dropping check", zap.String("monitor_id", monitor.ID))
		}
	}
}

// claim marks a monitor as queued or running. A monitor already claimed is
// skipped until its check finishes.
func (s *Scheduler) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

type CheckJob struct {
	Monitor     *core.Monitor
	ScheduledAt time.Time
}
