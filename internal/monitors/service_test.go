package monitors

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leozw/uptime-engine/internal/core"
	"github.com/leozw/uptime-engine/internal/storage/memory"
)

type fakeProber struct {
	mu     sync.Mutex
	clock  time.Time
	result func(target string) *core.CheckResult
	before func()
	calls  int
}

func (f *fakeProber) Execute(ctx context.Context, target string, protocol core.Protocol) (*core.CheckResult, error) {
	if f.before != nil {
		f.before()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.clock = f.clock.Add(time.Second)
	if f.result != nil {
		r := f.result(target)
		r.CheckedAt = f.clock
		return r, nil
	}
	return core.NewUp(12*time.Millisecond, f.clock), nil
}

type fakeRecorder struct {
	checks, failures, created, deleted atomic.Int32
}

func (r *fakeRecorder) ObserveCheck(core.Protocol, core.CheckStatus, time.Duration) { r.checks.Add(1) }
func (r *fakeRecorder) RecordFailure()                                              { r.failures.Add(1) }
func (r *fakeRecorder) MonitorCreated()                                             { r.created.Add(1) }
func (r *fakeRecorder) MonitorDeleted()                                             { r.deleted.Add(1) }

type failingAppend struct {
	*memory.Store
	err error
}

func (f *failingAppend) Append(context.Context, *core.CheckResult) (*core.CheckResult, error) {
	return nil, f.err
}

var t0 = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

func intp(i int) *int { return &i }

func newService(t *testing.T) (*Service, *memory.Store, *fakeProber, *fakeRecorder) {
	t.Helper()
	store := memory.New()
	prober := &fakeProber{clock: t0}
	rec := &fakeRecorder{}
	svc := NewService(store, prober, Options{Metrics: rec, Now: func() time.Time { return t0 }}, nil)
	return svc, store, prober, rec
}

func siteSpec() core.MonitorSpec {
	return core.MonitorSpec{Name: "site", Target: "https://example.test", Protocol: "HTTPS", IntervalSeconds: intp(300)}
}

func TestCreateTriggerList_Scenario(t *testing.T) {
	ctx := context.Background()
	svc, _, _, rec := newService(t)

	m, err := svc.Create(ctx, "alice", siteSpec())
	require.NoError(t, err)
	_, err = uuid.Parse(m.ID)
	require.NoError(t, err)

	first, err := svc.TriggerCheck(ctx, "alice", m.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusUp, first.Status)
	assert.GreaterOrEqual(t, *first.LatencyMs, int64(0))

	second, err := svc.TriggerCheck(ctx, "alice", m.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Latest)
	assert.Equal(t, second.ID, list[0].Latest.ResultID)

	assert.Equal(t, int32(1), rec.created.Load())
	assert.Equal(t, int32(2), rec.checks.Load())
}

func TestTriggerCheck_UnreachableIsDown(t *testing.T) {
	ctx := context.Background()
	svc, _, prober, _ := newService(t)
	prober.result = func(string) *core.CheckResult {
		return core.NewDown("dns lookup failed: no such host", nil, time.Time{})
	}

	m, err := svc.Create(ctx, "alice", core.MonitorSpec{Name: "bad", Target: "https://nonexistent.invalid", Protocol: "HTTPS"})
	require.NoError(t, err)

	r, err := svc.TriggerCheck(ctx, "alice", m.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDown, r.Status)
	assert.NotEmpty(t, r.Detail())
	assert.Nil(t, r.LatencyMs)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newService(t)

	spec := siteSpec()
	spec.IntervalSeconds = intp(30)
	_, err := svc.Create(ctx, "alice", spec)
	assert.ErrorIs(t, err, core.ErrValidation)

	list, err := store.ListMonitors(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)

	spec.IntervalSeconds = nil
	m, err := svc.Create(ctx, "alice", spec)
	require.NoError(t, err)
	assert.Equal(t, 300, m.IntervalSeconds)
}

func TestUnauthenticated(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService(t)

	_, err := svc.Create(ctx, "", siteSpec())
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
	_, err = svc.List(ctx, "  ")
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
	assert.ErrorIs(t, svc.Delete(ctx, "", uuid.NewString()), core.ErrUnauthenticated)
	_, err = svc.TriggerCheck(ctx, "", uuid.NewString())
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}

func TestOtherOwnerIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, prober, _ := newService(t)

	m, err := svc.Create(ctx, "alice", siteSpec())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "bob", m.ID), core.ErrNotFound)
	_, err = svc.TriggerCheck(ctx, "bob", m.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = svc.Get(ctx, "bob", m.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, 0, prober.calls)

	bobs, err := svc.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobs)

	alices, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, alices, 1)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	svc, _, _, _ := newService(t)
	_, err := svc.Get(context.Background(), "alice", "not-a-uuid")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDelete_RemovesHistory(t *testing.T) {
	ctx := context.Background()
	svc, store, _, rec := newService(t)

	m, err := svc.Create(ctx, "alice", siteSpec())
	require.NoError(t, err)
	_, err = svc.TriggerCheck(ctx, "alice", m.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "alice", m.ID))
	assert.Equal(t, int32(1), rec.deleted.Load())

	latest, err := store.Latest(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = svc.TriggerCheck(ctx, "alice", m.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTriggerCheck_DeleteRaceSurfacesNotFound(t *testing.T) {
	ctx := context.Background()
	svc, store, prober, rec := newService(t)

	m, err := svc.Create(ctx, "alice", siteSpec())
	require.NoError(t, err)
	prober.before = func() { assert.NoError(t, store.DeleteMonitor(ctx, "alice", m.ID)) }

	_, err = svc.TriggerCheck(ctx, "alice", m.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)

	var recErr *core.RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, core.StatusUp, recErr.Result.Status)
	assert.Equal(t, int32(1), rec.failures.Load())
}

func TestTriggerCheck_StorageFailureKeepsClassification(t *testing.T) {
	ctx := context.Background()
	store := &failingAppend{Store: memory.New(), err: core.NewStorageError("append", errors.New("connection reset"))}
	svc := NewService(store, &fakeProber{clock: t0}, Options{}, nil)

	m, err := svc.Create(ctx, "alice", siteSpec())
	require.NoError(t, err)

	_, err = svc.TriggerCheck(ctx, "alice", m.ID)
	assert.ErrorIs(t, err, core.ErrStorage)

	var recErr *core.RecordError
	require.True(t, errors.As(err, &recErr))
	require.NotNil(t, recErr.Result)
	assert.Equal(t, m.ID, recErr.Result.MonitorID)
}

func TestTriggerCheck_AbandonedCallerStillRecords(t *testing.T) {
	svc, store, prober, _ := newService(t)

	m, err := svc.Create(context.Background(), "alice", siteSpec())
	require.NoError(t, err)

	release := make(chan struct{})
	prober.before = func() { <-release }

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := svc.TriggerCheck(ctx, "alice", m.ID)
		errCh <- err
	}()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	close(release)

	require.Eventually(t, func() bool {
		r, err := store.Latest(context.Background(), m.ID)
		return err == nil && r != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHistory_LimitAndOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService(t)

	m, err := svc.Create(ctx, "alice", siteSpec())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.TriggerCheck(ctx, "alice", m.ID)
		require.NoError(t, err)
	}

	hist, err := svc.History(ctx, "alice", m.ID, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.True(t, hist[0].CheckedAt.After(hist[1].CheckedAt))

	all, err := svc.History(ctx, "alice", m.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStatus_NeverChecked(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService(t)

	m, err := svc.Create(ctx, "alice", siteSpec())
	require.NoError(t, err)

	s, err := svc.Status(ctx, "alice", m.ID)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, clampLimit(0))
	assert.Equal(t, DefaultHistoryLimit, clampLimit(-5))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxHistoryLimit, clampLimit(5000))
}
