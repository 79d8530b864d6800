package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/leozw/uptime-engine/internal/core"
)

const resultColumns = `id, monitor_id, status, latency_ms, error_detail, checked_at`

func (db *DB) Append(ctx context.Context, r *core.CheckResult) (*core.CheckResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	out := *r
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CheckedAt.IsZero() {
		out.CheckedAt = db.now().UTC()
	}

	query := `
        INSERT INTO check_results (
            id, monitor_id, status, latency_ms, error_detail, checked_at
        ) VALUES (
            :id, :monitor_id, :status, :latency_ms, :error_detail, :checked_at
        )`

	if _, err := db.NamedExecContext(ctx, query, &out); err != nil {
		return nil, translate("append check result", err)
	}
	return &out, nil
}

func (db *DB) Latest(ctx context.Context, monitorID string) (*core.CheckResult, error) {
	var rows []*core.CheckResult
	query := `
        SELECT ` + resultColumns + `
        FROM check_results
        WHERE monitor_id = $1
        ORDER BY checked_at DESC, id DESC
        LIMIT 1`

	if err := db.SelectContext(ctx, &rows, query, monitorID); err != nil {
		return nil, translate("latest check result", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// LatestBulk resolves every monitor in one statement, one row per monitor.
func (db *DB) LatestBulk(ctx context.Context, monitorIDs []string) (map[string]*core.CheckResult, error) {
	out := make(map[string]*core.CheckResult, len(monitorIDs))
	if len(monitorIDs) == 0 {
		return out, nil
	}

	var rows []*core.CheckResult
	query := `
        SELECT DISTINCT ON (monitor_id) ` + resultColumns + `
        FROM check_results
        WHERE monitor_id = ANY($1::uuid[])
        ORDER BY monitor_id, checked_at DESC, id DESC`

	if err := db.SelectContext(ctx, &rows, query, pq.Array(monitorIDs)); err != nil {
		return nil, translate("latest check results", err)
	}
	for _, r := range rows {
		out[r.MonitorID] = r
	}
	return out, nil
}

func (db *DB) History(ctx context.Context, monitorID string, limit int) ([]*core.CheckResult, error) {
	results := []*core.CheckResult{}
	query := `
        SELECT ` + resultColumns + `
        FROM check_results
        WHERE monitor_id = $1
        ORDER BY checked_at DESC, id DESC
        LIMIT $2`

	if err := db.SelectContext(ctx, &results, query, monitorID, limit); err != nil {
		return nil, translate("check history", err)
	}
	return results, nil
}
