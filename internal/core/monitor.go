package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Protocol string

const (
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
	ProtocolPing  Protocol = "PING"
)

// Protocols lists every protocol a monitor may declare.
var Protocols = []Protocol{ProtocolHTTP, ProtocolHTTPS, ProtocolPing}

// ParseProtocol accepts a protocol name in any letter case.
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("must be one of HTTP, HTTPS, PING (got %q)", s)}
	}
	return p, nil
}

func (p Protocol) Valid() bool {
	switch p {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolPing:
		return true
	}
	return false
}

const (
	MinInterval     = 60 * time.Second
	DefaultInterval = 300 * time.Second
	MaxNameLength   = 255
)

type Monitor struct {
	ID              string    `json:"id" db:"id"`
	Owner           Identity  `json:"-" db:"owner_id"`
	Name            string    `json:"name" db:"name"`
	Target          string    `json:"url" db:"target"`
	Protocol        Protocol  `json:"type" db:"protocol"`
	IntervalSeconds int       `json:"interval_seconds" db:"interval_seconds"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

func (m *Monitor) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// MonitorSpec is the caller-supplied part of a monitor before validation.
type MonitorSpec struct {
	Name            string
	Target          string
	Protocol        string
	IntervalSeconds *int
}

// Build validates the spec and returns the monitor it describes. The first
// violated constraint is reported; nothing is returned on failure.
func (s MonitorSpec) Build(owner Identity, id string, now time.Time) (*Monitor, error) {
	if !owner.Valid() {
		return nil, ErrUnauthenticated
	}

	name := strings.TrimSpace(s.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len([]rune(name)) > MaxNameLength {
		return nil, &ValidationError{Field: "name", Reason: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	}

	target := strings.TrimSpace(s.Target)
	if _, err := ParseTarget(target); err != nil {
		return nil, err
	}

	protocol, err := ParseProtocol(s.Protocol)
	if err != nil {
		return nil, err
	}

	interval := int(DefaultInterval / time.Second)
	if s.IntervalSeconds != nil {
		interval = *s.IntervalSeconds
		if err := ValidateInterval(interval); err != nil {
			return nil, err
		}
	}

	return &Monitor{
		ID:              id,
		Owner:           owner,
		Name:            name,
		Target:          target,
		Protocol:        protocol,
		IntervalSeconds: interval,
		CreatedAt:       now.UTC(),
	}, nil
}

func ValidateInterval(seconds int) error {
	min := int(MinInterval / time.Second)
	if seconds < min {
		return &ValidationError{Field: "interval_seconds", Reason: fmt.Sprintf("must be at least %d", min)}
	}
	if seconds%min != 0 {
		return &ValidationError{Field: "interval_seconds", Reason: fmt.Sprintf("must be a multiple of %d", min)}
	}
	return nil
}

// ParseTarget parses an absolute http(s) URL with a host.
func ParseTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, &ValidationError{Field: "url", Reason: "must not be empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ValidationError{Field: "url", Reason: "is not a valid URL"}
	}
	if !u.IsAbs() || u.Host == "" || u.Hostname() == "" {
		return nil, &ValidationError{Field: "url", Reason: "must be an absolute URL with a host"}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, &ValidationError{Field: "url", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	return u, nil
}
