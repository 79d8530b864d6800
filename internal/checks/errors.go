package checks

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
	"time"
)

// describeFailure turns a transport error into a short human-readable detail.
func describeFailure(err error, timeout time.Duration) string {
	if isTimeout(err) {
		return fmt.Sprintf("timeout after %s", timeout)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("dns lookup failed: %s", dnsErr.Err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return "connection refused"
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return "connection reset"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isLookupFailure(err error) bool {
	if isTimeout(err) {
		return false
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
