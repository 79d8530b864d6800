package checks

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/leozw/uptime-engine/internal/core"
	"go.uber.org/zap"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultPingTimeout = 5 * time.Second

	userAgent = "uptime-engine/1.0"
)

// Outcome is what a runner observed. Err is set when no response arrived.
type Outcome struct {
	Up       bool
	Latency  time.Duration
	Measured bool
	Detail   string
	Err      error
}

// Runner performs one probe. It must return once ctx is done.
type Runner interface {
	Check(ctx context.Context, target *url.URL) Outcome
}

type Options struct {
	HTTPTimeout time.Duration
	PingTimeout time.Duration
	// Diagnoser, when set, annotates lookup failures with the resolver rcode.
	Diagnoser *Diagnoser
	Now       func() time.Time
}

type strategy struct {
	runner  Runner
	timeout time.Duration
}

// Executor classifies a target's reachability into a CheckResult. Every
// failure becomes a DOWN result; only an unparseable target is an error.
type Executor struct {
	http      strategy
	ping      strategy
	diagnoser *Diagnoser
	now       func() time.Time
	logger    *zap.Logger
}

func NewExecutor(opts Options, logger *zap.Logger) *Executor {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = DefaultHTTPTimeout
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = DefaultPingTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		http:      strategy{runner: NewHTTPChecker(), timeout: opts.HTTPTimeout},
		ping:      strategy{runner: NewPingChecker(), timeout: opts.PingTimeout},
		diagnoser: opts.Diagnoser,
		now:       opts.Now,
		logger:    logger,
	}
}

func (e *Executor) strategyFor(p core.Protocol) (strategy, bool) {
	switch p {
	case core.ProtocolHTTP, core.ProtocolHTTPS:
		return e.http, true
	case core.ProtocolPing:
		return e.ping, true
	}
	return strategy{}, false
}

// Timeout returns the probe bound for a protocol, zero when unsupported.
func (e *Executor) Timeout(p core.Protocol) time.Duration {
	s, _ := e.strategyFor(p)
	return s.timeout
}

// Execute runs one probe. The returned result has no id or monitor yet.
func (e *Executor) Execute(ctx context.Context, target string, protocol core.Protocol) (*core.CheckResult, error) {
	u, err := core.ParseTarget(target)
	if err != nil {
		return nil, err
	}

	s, ok := e.strategyFor(protocol)
	if !ok {
		return core.NewDown(fmt.Sprintf("unsupported protocol %q", protocol), nil, e.now().UTC()), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := s.runner.Check(ctx, u)

	var result *core.CheckResult
	switch {
	case out.Up:
		result = core.NewUp(out.Latency, e.now().UTC())
	case out.Err != nil:
		detail := describeFailure(out.Err, s.timeout)
		if e.diagnoser != nil && isLookupFailure(out.Err) {
			if class := e.diagnoser.Classify(ctx, u.Hostname()); class != "" {
				detail = fmt.Sprintf("%s (dns=%s)", detail, class)
			}
		}
		result = core.NewDown(detail, latencyOf(out), e.now().UTC())
	default:
		result = core.NewDown(out.Detail, latencyOf(out), e.now().UTC())
	}

	e.logger.Debug("Probe finished",
		zap.String("target", u.Redacted()),
		zap.String("protocol", string(protocol)),
		zap.String("status", string(result.Status)),
		zap.Duration("latency", out.Latency),
		zap.String("error", result.Detail()),
	)

	return result, nil
}

func latencyOf(o Outcome) *time.Duration {
	if !o.Measured {
		return nil
	}
	l := o.Latency
	return &l
}
