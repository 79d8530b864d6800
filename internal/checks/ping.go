package checks

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// PingChecker sends HEAD to the target's origin. Any response at all,
// whatever its status, counts as reachable.
type PingChecker struct {
	client *http.Client
}

func NewPingChecker() *PingChecker {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &PingChecker{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (p *PingChecker) Check(ctx context.Context, target *url.URL) Outcome {
	origin := url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/"}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, origin.String(), nil)
	if err != nil {
		return Outcome{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Outcome{Err: err, Latency: latency, Measured: true}
	}
	resp.Body.Close()

	return Outcome{Up: true, Latency: latency, Measured: true}
}
