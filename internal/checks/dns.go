package checks

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
)

const DefaultResolver = "8.8.8.8:53"

// Diagnoser asks an upstream resolver about a host that failed to resolve
// locally, so a DOWN result can say whether the name exists at all.
type Diagnoser struct {
	client   *dns.Client
	resolver string
}

func NewDiagnoser(resolver string) *Diagnoser {
	if resolver == "" {
		resolver = DefaultResolver
	}
	return &Diagnoser{
		client:   &dns.Client{Timeout: 2 * time.Second},
		resolver: resolver,
	}
}

// Classify returns the resolver's rcode for host, "NODATA" for an empty
// answer, or "" when there is nothing useful to add.
func (d *Diagnoser) Classify(ctx context.Context, host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= 0 {
		return ""
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	r, _, err := d.client.ExchangeContext(ctx, m, d.resolver)
	if err != nil || r == nil {
		return ""
	}

	if r.Rcode != dns.RcodeSuccess {
		return dns.RcodeToString[r.Rcode]
	}
	if len(r.Answer) == 0 {
		return "NODATA"
	}
	return ""
}
