package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/leozw/uptime-engine/internal/core"
)

type Worker struct {
	id        int
	workQueue <-chan *CheckJob
	limiter   *rate.Limiter
	recorder  Recorder
	done      func(monitorID string)
	logger    *zap.Logger
}

func NewWorker(id int, workQueue <-chan *CheckJob, limiter *rate.Limiter, recorder Recorder, done func(string), logger *zap.Logger) *Worker {
	return &Worker{
		id:        id,
		workQueue: workQueue,
		limiter:   limiter,
		recorder:  recorder,
		done:      done,
		logger:    logger.With(zap.Int("worker_id", id)),
	}
}

// Start drains the queue until it is closed. Once ctx is done queued jobs
// are released without probing.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Debug("Worker started")

	for job := range w.workQueue {
		if err := w.limiter.Wait(ctx); err != nil {
			w.done(job.Monitor.ID)
			continue
		}
		w.processJob(ctx, job)
	}

	w.logger.Debug("Worker stopped")
}

func (w *Worker) processJob(ctx context.Context, job *CheckJob) {
	defer w.done(job.Monitor.ID)
	start := time.Now()

	// A check already started is allowed to finish and persist.
	result, err := w.recorder.Record(context.WithoutCancel(ctx), job.Monitor)
	if err != nil {
		var recErr *core.RecordError
		if errors.As(err, &recErr) && errors.Is(err, core.ErrNotFound) {
			w.logger.Debug("Monitor deleted during check", zap.String("monitor_id", job.Monitor.ID))
			return
		}
		w.logger.Error("Scheduled check failed",
			zap.String("monitor_id", job.Monitor.ID),
			zap.Error(err),
		)
		return
	}

	w.logger.Debug("Scheduled check completed",
		zap.String("monitor_id", job.Monitor.ID),
		zap.String("status", string(result.Status)),
		zap.Duration("queued", start.Sub(job.ScheduledAt)),
		zap.Duration("duration", time.Since(start)),
	)
}
