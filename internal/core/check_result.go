package core

import (
	"errors"
	"time"
)

type CheckStatus string

const (
	StatusUp   CheckStatus = "UP"
	StatusDown CheckStatus = "DOWN"
)

// CheckResult is one immutable probe outcome for a monitor. UP results
// always carry a latency and no error detail; DOWN results always carry an
// error detail and keep the latency only when one was measured.
type CheckResult struct {
	ID          string      `json:"id" db:"id"`
	MonitorID   string      `json:"monitor_id" db:"monitor_id"`
	Status      CheckStatus `json:"status" db:"status"`
	LatencyMs   *int64      `json:"latency_ms,omitempty" db:"latency_ms"`
	ErrorDetail *string     `json:"error_detail,omitempty" db:"error_detail"`
	CheckedAt   time.Time   `json:"checked_at" db:"checked_at"`
}

func NewUp(latency time.Duration, checkedAt time.Time) *CheckResult {
	ms := wholeMillis(latency)
	return &CheckResult{Status: StatusUp, LatencyMs: &ms, CheckedAt: checkedAt}
}

// NewDown builds a DOWN result. A nil latency means no measurement exists.
func NewDown(detail string, latency *time.Duration, checkedAt time.Time) *CheckResult {
	if detail == "" {
		detail = "check failed"
	}
	r := &CheckResult{Status: StatusDown, ErrorDetail: &detail, CheckedAt: checkedAt}
	if latency != nil {
		ms := wholeMillis(*latency)
		r.LatencyMs = &ms
	}
	return r
}

func wholeMillis(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}

func (r *CheckResult) Latency() (time.Duration, bool) {
	if r.LatencyMs == nil {
		return 0, false
	}
	return time.Duration(*r.LatencyMs) * time.Millisecond, true
}

func (r *CheckResult) Detail() string {
	if r.ErrorDetail == nil {
		return ""
	}
	return *r.ErrorDetail
}

// Validate checks the UP/DOWN field invariants.
func (r *CheckResult) Validate() error {
	switch r.Status {
	case StatusUp:
		if r.LatencyMs == nil || *r.LatencyMs < 0 {
			return errors.New("up result requires a non-negative latency")
		}
		if r.ErrorDetail != nil {
			return errors.New("up result must not carry an error detail")
		}
	case StatusDown:
		if r.ErrorDetail == nil || *r.ErrorDetail == "" {
			return errors.New("down result requires an error detail")
		}
		if r.LatencyMs != nil && *r.LatencyMs < 0 {
			return errors.New("latency must be non-negative")
		}
	default:
		return errors.New("unknown status " + string(r.Status))
	}
	return nil
}

// NewerThan reports whether r is more recent than other. Equal timestamps
// fall back to the id so the ordering stays total.
func (r *CheckResult) NewerThan(other *CheckResult) bool {
	if other == nil {
		return true
	}
	if r.CheckedAt.Equal(other.CheckedAt) {
		return r.ID > other.ID
	}
	return r.CheckedAt.After(other.CheckedAt)
}

// LatestStatus is the most recent check of a monitor. It is derived from
// history, never stored.
type LatestStatus struct {
	ResultID    string      `json:"result_id"`
	Status      CheckStatus `json:"status"`
	LatencyMs   *int64      `json:"latency_ms,omitempty"`
	ErrorDetail *string     `json:"error_detail,omitempty"`
	CheckedAt   time.Time   `json:"checked_at"`
}

func StatusOf(r *CheckResult) *LatestStatus {
	if r == nil {
		return nil
	}
	return &LatestStatus{
		ResultID:    r.ID,
		Status:      r.Status,
		LatencyMs:   r.LatencyMs,
		ErrorDetail: r.ErrorDetail,
		CheckedAt:   r.CheckedAt,
	}
}

type MonitorWithStatus struct {
	*Monitor
	Latest *LatestStatus `json:"latest"`
}
