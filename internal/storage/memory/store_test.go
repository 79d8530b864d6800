package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leozw/uptime-engine/internal/core"
)

var t0 = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, id string, owner core.Identity, created time.Time) *core.Monitor {
	t.Helper()
	m := &core.Monitor{ID: id, Owner: owner, Name: id, Target: "https://example.test", Protocol: core.ProtocolHTTPS, IntervalSeconds: 60, CreatedAt: created}
	require.NoError(t, s.CreateMonitor(context.Background(), m))
	return m
}

func TestOwnerScoping(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "m1", "alice", t0)

	_, err := s.GetMonitor(ctx, "bob", "m1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteMonitor(ctx, "bob", "m1"), core.ErrNotFound)

	list, err := s.ListMonitors(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := s.GetMonitor(ctx, "alice", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
}

func TestListMonitors_NewestFirst(t *testing.T) {
	s := New()
	seed(t, s, "old", "alice", t0)
	seed(t, s, "new", "alice", t0.Add(time.Hour))

	list, err := s.ListMonitors(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestLatest_ReflectsTimestampNotInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "m1", "alice", t0)

	later := core.NewUp(time.Millisecond, t0.Add(2*time.Minute))
	later.MonitorID = "m1"
	earlier := core.NewDown("503 Service Unavailable", nil, t0.Add(time.Minute))
	earlier.MonitorID = "m1"

	_, err := s.Append(ctx, later)
	require.NoError(t, err)
	_, err = s.Append(ctx, earlier)
	require.NoError(t, err)

	latest, err := s.Latest(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusUp, latest.Status)

	hist, err := s.History(ctx, "m1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, core.StatusUp, hist[0].Status)
}

func TestLatest_NeverChecked(t *testing.T) {
	s := New()
	seed(t, s, "m1", "alice", t0)
	r, err := s.Latest(context.Background(), "m1")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestAppend_DeletedMonitor(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "m1", "alice", t0)
	require.NoError(t, s.DeleteMonitor(ctx, "alice", "m1"))

	r := core.NewUp(time.Millisecond, t0)
	r.MonitorID = "m1"
	_, err := s.Append(ctx, r)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteMonitor_CascadesHistory(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "m1", "alice", t0)
	r := core.NewUp(time.Millisecond, t0)
	r.MonitorID = "m1"
	_, err := s.Append(ctx, r)
	require.NoError(t, err)

	require.NoError(t, s.DeleteMonitor(ctx, "alice", "m1"))

	hist, err := s.History(ctx, "m1", 10)
	require.NoError(t, err)
	assert.Empty(t, hist)
	latest, err := s.Latest(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestLatestBulk(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "m1", "alice", t0)
	seed(t, s, "m2", "alice", t0)
	r := core.NewUp(time.Millisecond, t0)
	r.MonitorID = "m1"
	_, err := s.Append(ctx, r)
	require.NoError(t, err)

	got, err := s.LatestBulk(ctx, []string{"m1", "m2"})
	require.NoError(t, err)
	assert.Contains(t, got, "m1")
	assert.NotContains(t, got, "m2")
}

func TestDueMonitors(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "never", "alice", t0)
	seed(t, s, "fresh", "alice", t0)
	seed(t, s, "stale", "bob", t0)

	fresh := core.NewUp(time.Millisecond, t0.Add(-30*time.Second))
	fresh.MonitorID = "fresh"
	stale := core.NewUp(time.Millisecond, t0.Add(-2*time.Minute))
	stale.MonitorID = "stale"
	for _, r := range []*core.CheckResult{fresh, stale} {
		_, err := s.Append(ctx, r)
		require.NoError(t, err)
	}

	due, err := s.DueMonitors(ctx, t0, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(due))
	for _, m := range due {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"never", "stale"}, ids)

	due, err = s.DueMonitors(ctx, t0, 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "m1", "alice", t0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := core.NewUp(time.Millisecond, t0.Add(time.Duration(i)*time.Second))
			r.MonitorID = "m1"
			_, err := s.Append(ctx, r)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	latest, err := s.Latest(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, latest.CheckedAt.Equal(t0.Add(49*time.Second)))

	hist, err := s.History(ctx, "m1", 1000)
	require.NoError(t, err)
	assert.Len(t, hist, 50)
}
