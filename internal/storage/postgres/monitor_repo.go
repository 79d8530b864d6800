package postgres

import (
	"context"
	"time"

	"github.com/leozw/uptime-engine/internal/core"
)

const monitorColumns = `id, owner_id, name, target, protocol, interval_seconds, created_at`

func (db *DB) CreateMonitor(ctx context.Context, m *core.Monitor) error {
	query := `
        INSERT INTO monitors (
            id, owner_id, name, target, protocol, interval_seconds, created_at
        ) VALUES (
            :id, :owner_id, :name, :target, :protocol, :interval_seconds, :created_at
        )`

	if _, err := db.NamedExecContext(ctx, query, m); err != nil {
		return translate("create monitor", err)
	}
	return nil
}

func (db *DB) GetMonitor(ctx context.Context, owner core.Identity, id string) (*core.Monitor, error) {
	var m core.Monitor
	query := `SELECT ` + monitorColumns + ` FROM monitors WHERE id = $1 AND owner_id = $2`

	if err := db.GetContext(ctx, &m, query, id, owner); err != nil {
		return nil, translate("get monitor", err)
	}
	return &m, nil
}

func (db *DB) ListMonitors(ctx context.Context, owner core.Identity) ([]*core.Monitor, error) {
	monitors := []*core.Monitor{}
	query := `
        SELECT ` + monitorColumns + `
        FROM monitors
        WHERE owner_id = $1
        ORDER BY created_at DESC, id DESC`

	if err := db.SelectContext(ctx, &monitors, query, owner); err != nil {
		return nil, translate("list monitors", err)
	}
	return monitors, nil
}

// DeleteMonitor locks the owned row first so a concurrent append either
// lands before the delete (and is cascaded) or fails its foreign key.
func (db *DB) DeleteMonitor(ctx context.Context, owner core.Identity, id string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return translate("delete monitor", err)
	}
	defer tx.Rollback()

	var locked string
	if err := tx.GetContext(ctx, &locked,
		`SELECT id FROM monitors WHERE id = $1 AND owner_id = $2 FOR UPDATE`, id, owner); err != nil {
		return translate("delete monitor", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM check_results WHERE monitor_id = $1`, id); err != nil {
		return translate("delete monitor history", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM monitors WHERE id = $1`, id); err != nil {
		return translate("delete monitor", err)
	}

	if err := tx.Commit(); err != nil {
		return translate("delete monitor", err)
	}
	return nil
}

func (db *DB) DueMonitors(ctx context.Context, now time.Time, limit int) ([]*core.Monitor, error) {
	monitors := []*core.Monitor{}
	query := `
        SELECT m.id, m.owner_id, m.name, m.target, m.protocol, m.interval_seconds, m.created_at
        FROM monitors m
        LEFT JOIN LATERAL (
            SELECT checked_at FROM check_results r
            WHERE r.monitor_id = m.id
            ORDER BY r.checked_at DESC, r.id DESC
            LIMIT 1
        ) last ON true
        WHERE last.checked_at IS NULL
           OR last.checked_at + make_interval(secs => m.interval_seconds) <= $1
        ORDER BY last.checked_at ASC NULLS FIRST
        LIMIT $2`

	if err := db.SelectContext(ctx, &monitors, query, now, limit); err != nil {
		return nil, translate("due monitors", err)
	}
	return monitors, nil
}
