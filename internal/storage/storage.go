// Package storage declares the persistence ports used by the engine. Every
// read and delete is scoped to the owning identity.
package storage

import (
	"context"
	"time"

	"github.com/leozw/uptime-engine/internal/core"
)

// Registry holds monitor definitions.
type Registry interface {
	CreateMonitor(ctx context.Context, m *core.Monitor) error
	// GetMonitor returns core.ErrNotFound when the monitor is absent or not owned.
	GetMonitor(ctx context.Context, owner core.Identity, id string) (*core.Monitor, error)
	// ListMonitors returns the owner's monitors, newest created first.
	ListMonitors(ctx context.Context, owner core.Identity) ([]*core.Monitor, error)
	// DeleteMonitor removes the monitor and its history atomically.
	DeleteMonitor(ctx context.Context, owner core.Identity, id string) error
	// DueMonitors returns monitors never checked or whose last check is at
	// least one interval old, across all owners.
	DueMonitors(ctx context.Context, now time.Time, limit int) ([]*core.Monitor, error)
}

// History is the append-only check log.
type History interface {
	// Append persists r, assigning an id and timestamp when missing. It
	// returns core.ErrNotFound if the monitor no longer exists.
	Append(ctx context.Context, r *core.CheckResult) (*core.CheckResult, error)
	// Latest returns nil, nil when the monitor has never been checked.
	Latest(ctx context.Context, monitorID string) (*core.CheckResult, error)
	// LatestBulk answers for many monitors in one round-trip. Monitors
	// without results are absent from the map.
	LatestBulk(ctx context.Context, monitorIDs []string) (map[string]*core.CheckResult, error)
	// History returns up to limit results, newest first.
	History(ctx context.Context, monitorID string, limit int) ([]*core.CheckResult, error)
}

type Store interface {
	Registry
	History
	Ping(ctx context.Context) error
	Close() error
}
