package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/leozw/uptime-engine/internal/core"
)

// RemoteWriteConfig configures the optional push of gathered metrics.
type RemoteWriteConfig struct {
	URL           string
	TenantHeader  string
	TenantID      string
	AuthToken     string
	BatchSize     int
	FlushInterval time.Duration
}

// Collector owns the engine's metrics. Labels never carry monitor ids so
// cardinality stays bounded by protocol and status.
type Collector struct {
	config   RemoteWriteConfig
	registry *prometheus.Registry
	client   *http.Client
	logger   *zap.Logger

	checksTotal      *prometheus.CounterVec
	checkDuration    *prometheus.HistogramVec
	recordFailures   prometheus.Counter
	monitorsCreated  prometheus.Counter
	monitorsDeleted  prometheus.Counter
	schedulerDropped prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func NewCollector(cfg RemoteWriteConfig, logger *zap.Logger) *Collector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		config:   cfg,
		registry: reg,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,

		checksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uptime_checks_total",
				Help: "Total number of checks performed",
			},
			[]string{"protocol", "status"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uptime_check_duration_seconds",
				Help:    "Duration of uptime checks in seconds",
				Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"protocol"},
		),

		recordFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "uptime_check_record_failures_total",
				Help: "Checks that completed but could not be persisted",
			},
		),

		monitorsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "uptime_monitors_created_total",
				Help: "Monitors created",
			},
		),

		monitorsDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "uptime_monitors_deleted_total",
				Help: "Monitors deleted",
			},
		),

		schedulerDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "uptime_scheduler_dropped_total",
				Help: "Scheduled checks dropped because the work queue was full",
			},
		),

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uptime_http_requests_total",
				Help: "API requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uptime_http_request_duration_seconds",
				Help:    "API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (c *Collector) ObserveCheck(protocol core.Protocol, status core.CheckStatus, latency time.Duration) {
	c.checksTotal.WithLabelValues(string(protocol), string(status)).Inc()
	if latency > 0 {
		c.checkDuration.WithLabelValues(string(protocol)).Observe(latency.Seconds())
	}
}

func (c *Collector) RecordFailure() {
	c.recordFailures.Inc()
}

func (c *Collector) MonitorCreated() {
	c.monitorsCreated.Inc()
}

func (c *Collector) MonitorDeleted() {
	c.monitorsDeleted.Inc()
}

func (c *Collector) SchedulerDropped() {
	c.schedulerDropped.Inc()
}

func (c *Collector) ObserveRequest(method, route string, code int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
