// Package monitors manages monitor lifecycle and on-demand checks.
package monitors

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leozw/uptime-engine/internal/core"
	"github.com/leozw/uptime-engine/internal/status"
	"github.com/leozw/uptime-engine/internal/storage"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000

	defaultWriteTimeout = 5 * time.Second
)

// Prober runs a single reachability probe.
type Prober interface {
	Execute(ctx context.Context, target string, protocol core.Protocol) (*core.CheckResult, error)
}

// Recorder receives check and lifecycle events. A nil Recorder is allowed.
type Recorder interface {
	ObserveCheck(protocol core.Protocol, status core.CheckStatus, latency time.Duration)
	RecordFailure()
	MonitorCreated()
	MonitorDeleted()
}

type Options struct {
	// WriteTimeout bounds the history append that follows a probe.
	WriteTimeout time.Duration
	Metrics      Recorder
	Now          func() time.Time
}

type Service struct {
	registry     storage.Registry
	history      storage.History
	status       *status.Aggregator
	prober       Prober
	metrics      Recorder
	logger       *zap.Logger
	now          func() time.Time
	writeTimeout time.Duration
}

func NewService(store storage.Store, prober Prober, opts Options, logger *zap.Logger) *Service {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:     store,
		history:      store,
		status:       status.NewAggregator(store),
		prober:       prober,
		metrics:      opts.Metrics,
		logger:       logger,
		now:          opts.Now,
		writeTimeout: opts.WriteTimeout,
	}
}

func (s *Service) Create(ctx context.Context, owner core.Identity, spec core.MonitorSpec) (*core.Monitor, error) {
	m, err := spec.Build(owner, uuid.NewString(), s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.registry.CreateMonitor(ctx, m); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MonitorCreated()
	}
	s.logger.Info("Monitor created",
		zap.String("monitor_id", m.ID),
		zap.String("owner_id", owner.String()),
		zap.String("protocol", string(m.Protocol)),
	)
	return m, nil
}

func (s *Service) Delete(ctx context.Context, owner core.Identity, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if !validID(id) {
		return core.ErrNotFound
	}
	if err := s.registry.DeleteMonitor(ctx, owner, id); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.MonitorDeleted()
	}
	s.logger.Info("Monitor deleted",
		zap.String("monitor_id", id),
		zap.String("owner_id", owner.String()),
	)
	return nil
}

// List returns the owner's monitors, newest first, with their latest status.
func (s *Service) List(ctx context.Context, owner core.Identity) ([]*core.MonitorWithStatus, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	monitors, err := s.registry.ListMonitors(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.status.Annotate(ctx, monitors)
}

func (s *Service) Get(ctx context.Context, owner core.Identity, id string) (*core.MonitorWithStatus, error) {
	m, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	latest, err := s.status.Current(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return &core.MonitorWithStatus{Monitor: m, Latest: latest}, nil
}

// Status returns nil when the monitor has never been checked.
func (s *Service) Status(ctx context.Context, owner core.Identity, id string) (*core.LatestStatus, error) {
	m, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return s.status.Current(ctx, m.ID)
}

// History returns recent results newest first. limit <= 0 selects the
// default; larger values are capped.
func (s *Service) History(ctx context.Context, owner core.Identity, id string, limit int) ([]*core.CheckResult, error) {
	m, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return s.history.History(ctx, m.ID, clampLimit(limit))
}

// TriggerCheck probes an owned monitor and records the result. The probe and
// the append run detached from ctx: a caller that goes away only loses the
// reply, the result is still persisted.
func (s *Service) TriggerCheck(ctx context.Context, owner core.Identity, id string) (*core.CheckResult, error) {
	m, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		result *core.CheckResult
		err    error
	}
	done := make(chan outcome, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		r, err := s.Record(detached, m)
		done <- outcome{r, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		s.logger.Warn("Caller left before check finished",
			zap.String("monitor_id", m.ID),
			zap.Error(ctx.Err()),
		)
		return nil, ctx.Err()
	}
}

// Record probes m and appends the result. It is the single write path into
// check history, shared by TriggerCheck and the scheduler. A failed append
// returns *core.RecordError carrying the unpersisted result.
func (s *Service) Record(ctx context.Context, m *core.Monitor) (*core.CheckResult, error) {
	result, err := s.prober.Execute(ctx, m.Target, m.Protocol)
	if err != nil {
		return nil, err
	}
	result.MonitorID = m.ID

	if s.metrics != nil {
		latency, _ := result.Latency()
		s.metrics.ObserveCheck(m.Protocol, result.Status, latency)
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	saved, err := s.history.Append(writeCtx, result)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordFailure()
		}
		s.logger.Error("Failed to record check result",
			zap.String("monitor_id", m.ID),
			zap.String("status", string(result.Status)),
			zap.Error(err),
		)
		return nil, &core.RecordError{Result: result, Err: err}
	}

	s.logger.Info("Check completed",
		zap.String("monitor_id", m.ID),
		zap.String("status", string(saved.Status)),
		zap.Int64p("latency_ms", saved.LatencyMs),
		zap.Stringp("error", saved.ErrorDetail),
	)
	return saved, nil
}

func (s *Service) owned(ctx context.Context, owner core.Identity, id string) (*core.Monitor, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, core.ErrNotFound
	}
	return s.registry.GetMonitor(ctx, owner, id)
}

func requireOwner(owner core.Identity) error {
	if !owner.Valid() {
		return core.ErrUnauthenticated
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}
