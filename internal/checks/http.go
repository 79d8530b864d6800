package checks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const maxRedirects = 10

// HTTPChecker issues a GET and treats 2xx and 3xx as up. Redirects are
// followed; past the limit the last 3xx response is what gets classified.
type HTTPChecker struct {
	client *http.Client
}

func NewHTTPChecker() *HTTPChecker {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &HTTPChecker{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target *url.URL) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Outcome{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := h.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Outcome{Err: err, Latency: latency, Measured: true}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return Outcome{Up: true, Latency: latency, Measured: true}
	}
	return Outcome{Latency: latency, Measured: true, Detail: statusLine(resp)}
}

func statusLine(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
