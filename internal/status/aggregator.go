// Package status derives current monitor state from check history. It reads
// through to the store on every call and holds no cache.
package status

import (
	"context"

	"github.com/leozw/uptime-engine/internal/core"
	"github.com/leozw/uptime-engine/internal/storage"
)

type Aggregator struct {
	history storage.History
}

func NewAggregator(history storage.History) *Aggregator {
	return &Aggregator{history: history}
}

// Current returns nil when the monitor has never been checked.
func (a *Aggregator) Current(ctx context.Context, monitorID string) (*core.LatestStatus, error) {
	r, err := a.history.Latest(ctx, monitorID)
	if err != nil {
		return nil, err
	}
	return core.StatusOf(r), nil
}

// CurrentBulk resolves many monitors with one history lookup. Monitors
// never checked are absent from the result.
func (a *Aggregator) CurrentBulk(ctx context.Context, monitorIDs []string) (map[string]*core.LatestStatus, error) {
	out := make(map[string]*core.LatestStatus, len(monitorIDs))
	if len(monitorIDs) == 0 {
		return out, nil
	}

	latest, err := a.history.LatestBulk(ctx, monitorIDs)
	if err != nil {
		return nil, err
	}
	for id, r := range latest {
		if s := core.StatusOf(r); s != nil {
			out[id] = s
		}
	}
	return out, nil
}

// Annotate pairs each monitor with its latest status, preserving order.
func (a *Aggregator) Annotate(ctx context.Context, monitors []*core.Monitor) ([]*core.MonitorWithStatus, error) {
	ids := make([]string, len(monitors))
	for i, m := range monitors {
		ids[i] = m.ID
	}

	current, err := a.CurrentBulk(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*core.MonitorWithStatus, len(monitors))
	for i, m := range monitors {
		out[i] = &core.MonitorWithStatus{Monitor: m, Latest: current[m.ID]}
	}
	return out, nil
}
