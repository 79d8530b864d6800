package metrics

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/golang/snappy"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"
)

// StartRemoteWrite pushes the registry to the configured endpoint until ctx
// is done. It returns immediately when no URL is configured.
func (c *Collector) StartRemoteWrite(ctx context.Context) {
	if c.config.URL == "" {
		return
	}

	c.logger.Info("Starting remote write",
		zap.String("url", c.config.URL),
		zap.Duration("interval", c.config.FlushInterval),
	)

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.flush(ctx); err != nil {
				c.logger.Warn("Remote write failed", zap.Error(err))
			}
		}
	}
}

func (c *Collector) flush(ctx context.Context) error {
	mfs, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	series := toTimeSeries(mfs, time.Now())
	if len(series) == 0 {
		return nil
	}

	for i := 0; i < len(series); i += c.config.BatchSize {
		end := i + c.config.BatchSize
		if end > len(series) {
			end = len(series)
		}
		if err := c.sendBatch(ctx, series[i:end]); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}
	return nil
}

func toTimeSeries(mfs []*dto.MetricFamily, now time.Time) []prompb.TimeSeries {
	var out []prompb.TimeSeries
	ts := now.UnixMilli()

	sample := func(name string, labels []prompb.Label, value float64, extra ...prompb.Label) {
		ls := make([]prompb.Label, 0, len(labels)+len(extra)+1)
		ls = append(ls, prompb.Label{Name: "__name__", Value: name})
		ls = append(ls, labels...)
		ls = append(ls, extra...)
		out = append(out, prompb.TimeSeries{
			Labels:  ls,
			Samples: []prompb.Sample{{Value: value, Timestamp: ts}},
		})
	}

	for _, mf := range mfs {
		name := mf.GetName()
		for _, m := range mf.Metric {
			labels := make([]prompb.Label, 0, len(m.Label))
			for _, l := range m.Label {
				labels = append(labels, prompb.Label{Name: l.GetName(), Value: l.GetValue()})
			}

			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				sample(name, labels, m.Counter.GetValue())
			case dto.MetricType_GAUGE:
				sample(name, labels, m.Gauge.GetValue())
			case dto.MetricType_UNTYPED:
				sample(name, labels, m.Untyped.GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.Histogram
				for _, b := range h.Bucket {
					sample(name+"_bucket", labels, float64(b.GetCumulativeCount()),
						prompb.Label{Name: "le", Value: formatBound(b.GetUpperBound())})
				}
				sample(name+"_bucket", labels, float64(h.GetSampleCount()),
					prompb.Label{Name: "le", Value: "+Inf"})
				sample(name+"_sum", labels, h.GetSampleSum())
				sample(name+"_count", labels, float64(h.GetSampleCount()))
			case dto.MetricType_SUMMARY:
				s := m.Summary
				sample(name+"_sum", labels, s.GetSampleSum())
				sample(name+"_count", labels, float64(s.GetSampleCount()))
			}
		}
	}
	return out
}

func formatBound(v float64) string {
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	return fmt.Sprintf("%g", v)
}

func (c *Collector) sendBatch(ctx context.Context, series []prompb.TimeSeries) error {
	req := &prompb.WriteRequest{Timeseries: series}

	data, err := req.Marshal()
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, data)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, pushURL(c.config.URL), bytes.NewReader(compressed))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if c.config.TenantHeader != "" && c.config.TenantID != "" {
		httpReq.Header.Set(c.config.TenantHeader, c.config.TenantID)
	}
	if c.config.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("remote write failed: %s", resp.Status)
	}
	return nil
}

// pushURL accepts either a base URL or a full push endpoint.
func pushURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/push") || strings.HasSuffix(base, "/write") {
		return base
	}
	return base + "/api/v1/push"
}
