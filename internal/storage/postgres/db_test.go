package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leozw/uptime-engine/internal/core"
)

var t0 = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return New(sqlx.NewDb(mockDB, "postgres"), nil), mock
}

var monitorCols = []string{"id", "owner_id", "name", "target", "protocol", "interval_seconds", "created_at"}
var resultCols = []string{"id", "monitor_id", "status", "latency_ms", "error_detail", "checked_at"}

func TestCreateMonitor(t *testing.T) {
	db, mock := newMockDB(t)
	m := &core.Monitor{ID: "11111111-1111-1111-1111-111111111111", Owner: "alice", Name: "site", Target: "https://example.test", Protocol: core.ProtocolHTTPS, IntervalSeconds: 300, CreatedAt: t0}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO monitors")).
		WithArgs(m.ID, "alice", "site", "https://example.test", "HTTPS", int64(300), t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.CreateMonitor(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMonitor_NotOwnedIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM monitors WHERE id = $1 AND owner_id = $2")).
		WithArgs("m1", "bob").
		WillReturnRows(sqlmock.NewRows(monitorCols))

	_, err := db.GetMonitor(context.Background(), "bob", "m1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMonitors(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(monitorCols).
			AddRow("m2", "alice", "b", "https://b.test", "PING", 60, t0.Add(time.Hour)).
			AddRow("m1", "alice", "a", "https://a.test", "HTTP", 120, t0))

	list, err := db.ListMonitors(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "m2", list[0].ID)
	assert.Equal(t, core.ProtocolPing, list[0].Protocol)
	assert.Equal(t, core.Identity("alice"), list[1].Owner)
}

func TestDeleteMonitor_Transaction(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("m1", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m1"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM check_results")).WithArgs("m1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM monitors")).WithArgs("m1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, db.DeleteMonitor(context.Background(), "alice", "m1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMonitor_NotOwnedRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("m1", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	assert.ErrorIs(t, db.DeleteMonitor(context.Background(), "bob", "m1"), core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_AssignsIdentity(t *testing.T) {
	db, mock := newMockDB(t)
	r := core.NewDown("connection refused", nil, t0)
	r.MonitorID = "m1"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO check_results")).
		WithArgs(sqlmock.AnyArg(), "m1", "DOWN", nil, "connection refused", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	out, err := db.Append(context.Background(), r)
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Empty(t, r.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_ForeignKeyViolationIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	r := core.NewUp(5*time.Millisecond, t0)
	r.MonitorID = "gone"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO check_results")).
		WillReturnError(&pq.Error{Code: pgForeignKeyViolation})

	_, err := db.Append(context.Background(), r)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAppend_DriverFailureIsStorage(t *testing.T) {
	db, mock := newMockDB(t)
	r := core.NewUp(5*time.Millisecond, t0)
	r.MonitorID = "m1"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO check_results")).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := db.Append(context.Background(), r)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func TestLatest(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM check_results")).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(resultCols).AddRow("r1", "m1", "UP", 42, nil, t0))

	r, err := db.Latest(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, core.StatusUp, r.Status)
	require.NotNil(t, r.LatencyMs)
	assert.Equal(t, int64(42), *r.LatencyMs)
	assert.Nil(t, r.ErrorDetail)
}

func TestLatest_NeverChecked(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM check_results")).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(resultCols))

	r, err := db.Latest(context.Background(), "m1")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestLatestBulk_SingleQuery(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (monitor_id)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(resultCols).
			AddRow("r1", "m1", "UP", 10, nil, t0).
			AddRow("r2", "m2", "DOWN", nil, "timeout after 10s", t0))

	got, err := db.LatestBulk(context.Background(), []string{"m1", "m2", "m3"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, core.StatusDown, got["m2"].Status)
	assert.Equal(t, "timeout after 10s", got["m2"].Detail())
	assert.NotContains(t, got, "m3")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestBulk_EmptySkipsQuery(t *testing.T) {
	db, mock := newMockDB(t)
	got, err := db.LatestBulk(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $2")).
		WithArgs("m1", 2).
		WillReturnRows(sqlmock.NewRows(resultCols).
			AddRow("r2", "m1", "UP", 10, nil, t0.Add(time.Minute)).
			AddRow("r1", "m1", "UP", 12, nil, t0))

	hist, err := db.History(context.Background(), "m1", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "r2", hist[0].ID)
}

func TestDueMonitors(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN LATERAL")).
		WithArgs(t0, 100).
		WillReturnRows(sqlmock.NewRows(monitorCols).
			AddRow("m1", "alice", "a", "https://a.test", "HTTP", 60, t0))

	due, err := db.DueMonitors(context.Background(), t0, 100)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "m1", due[0].ID)
}
