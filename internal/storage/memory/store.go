// Package memory is a process-local Store used when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leozw/uptime-engine/internal/core"
	"github.com/leozw/uptime-engine/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	monitors map[string]*core.Monitor
	results  map[string][]*core.CheckResult
	latest   map[string]*core.CheckResult
	now      func() time.Time
}

func New() *Store {
	return &Store{
		monitors: make(map[string]*core.Monitor),
		results:  make(map[string][]*core.CheckResult),
		latest:   make(map[string]*core.CheckResult),
		now:      time.Now,
	}
}

func (s *Store) CreateMonitor(_ context.Context, m *core.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.monitors[m.ID]; ok {
		return core.NewStorageError("create monitor", errDuplicate(m.ID))
	}
	cp := *m
	s.monitors[m.ID] = &cp
	return nil
}

func (s *Store) GetMonitor(_ context.Context, owner core.Identity, id string) (*core.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.monitors[id]
	if !ok || m.Owner != owner {
		return nil, core.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListMonitors(_ context.Context, owner core.Identity) ([]*core.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Monitor, 0)
	for _, m := range s.monitors {
		if m.Owner == owner {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteMonitor(_ context.Context, owner core.Identity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.monitors[id]
	if !ok || m.Owner != owner {
		return core.ErrNotFound
	}
	delete(s.monitors, id)
	delete(s.results, id)
	delete(s.latest, id)
	return nil
}

func (s *Store) DueMonitors(_ context.Context, now time.Time, limit int) ([]*core.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]*core.Monitor, 0)
	for id, m := range s.monitors {
		last, ok := s.latest[id]
		if ok && last.CheckedAt.Add(m.Interval()).After(now) {
			continue
		}
		cp := *m
		due = append(due, &cp)
	}
	sort.Slice(due, func(i, j int) bool {
		return lastChecked(s.latest[due[i].ID]).Before(lastChecked(s.latest[due[j].ID]))
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func lastChecked(r *core.CheckResult) time.Time {
	if r == nil {
		return time.Time{}
	}
	return r.CheckedAt
}

func (s *Store) Append(_ context.Context, r *core.CheckResult) (*core.CheckResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.monitors[r.MonitorID]; !ok {
		return nil, core.ErrNotFound
	}

	cp := *r
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CheckedAt.IsZero() {
		cp.CheckedAt = s.now().UTC()
	}

	s.results[cp.MonitorID] = append(s.results[cp.MonitorID], &cp)
	if cp.NewerThan(s.latest[cp.MonitorID]) {
		s.latest[cp.MonitorID] = &cp
	}

	out := cp
	return &out, nil
}

func (s *Store) Latest(_ context.Context, monitorID string) (*core.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.latest[monitorID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *Store) LatestBulk(_ context.Context, monitorIDs []string) (map[string]*core.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*core.CheckResult, len(monitorIDs))
	for _, id := range monitorIDs {
		if r, ok := s.latest[id]; ok {
			cp := *r
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *Store) History(_ context.Context, monitorID string, limit int) ([]*core.CheckResult, error) {
	s.mu.RLock()
	all := make([]*core.CheckResult, len(s.results[monitorID]))
	copy(all, s.results[monitorID])
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].NewerThan(all[j]) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]*core.CheckResult, len(all))
	for i, r := range all {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

type errDuplicate string

func (e errDuplicate) Error() string { return "monitor " + string(e) + " already exists" }
