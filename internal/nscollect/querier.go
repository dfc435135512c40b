package nscollect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/cess-pro/Domain-Relation/internal/zone"
)

// ErrNoNameservers is returned when a zone exists but publishes no NS records, or does not exist
var ErrNoNameservers = errors.New("no nameservers")

// Querier looks up the nameserver hostnames of a zone
type Querier interface {
	QueryNS(ctx context.Context, name string) ([]string, error)
}

// DNSQuerier sends NS queries to recursive resolvers in round-robin order
type DNSQuerier struct {
	udp       *dns.Client
	tcp       *dns.Client
	resolvers []string
	limiter   *rate.Limiter
	attempts  int

	mu    sync.Mutex
	index int
}

// NewDNSQuerier creates a querier. qps bounds the query rate across all resolvers,
// attempts is the number of tries per zone.
func NewDNSQuerier(resolvers []string, timeout time.Duration, qps float64, attempts int) (*DNSQuerier, error) {
	if len(resolvers) == 0 {
		return nil, fmt.Errorf("at least one resolver is required")
	}
	if attempts < 1 {
		attempts = 1
	}

	// Allow some burst capacity
	burst := int(qps / 10)
	if burst < 1 {
		burst = 1
	}

	return &DNSQuerier{
		udp:       &dns.Client{Net: "udp", Timeout: timeout},
		tcp:       &dns.Client{Net: "tcp", Timeout: timeout},
		resolvers: resolvers,
		limiter:   rate.NewLimiter(rate.Limit(qps), burst),
		attempts:  attempts,
	}, nil
}

// next returns the next resolver using round-robin
func (q *DNSQuerier) next() string {
	q.mu.Lock()
	defer q.mu.Unlock()

	server := q.resolvers[q.index]
	q.index = (q.index + 1) % len(q.resolvers)
	return server
}

// QueryNS returns the normalized NS targets of name. Transport failures and server
// errors are retried on the next resolver; NXDOMAIN and empty answers are final.
func (q *DNSQuerier) QueryNS(ctx context.Context, name string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeNS)
	msg.RecursionDesired = true

	var lastErr error
	for attempt := 1; attempt <= q.attempts; attempt++ {
		if err := q.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		server := q.next()
		resp, _, err := q.udp.ExchangeContext(ctx, msg, server)
		if err == nil && resp.Truncated {
			resp, _, err = q.tcp.ExchangeContext(ctx, msg, server)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("query %s via %s: %w", name, server, err)
			logrus.WithFields(logrus.Fields{
				"zone":     name,
				"resolver": server,
				"attempt":  attempt,
			}).Debugf("NS query failed: %v", err)
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			ns := nameservers(resp)
			if len(ns) == 0 {
				return nil, ErrNoNameservers
			}
			return ns, nil
		case dns.RcodeNameError:
			return nil, fmt.Errorf("%s: %w (%s)", name, ErrNoNameservers, dns.RcodeToString[resp.Rcode])
		default:
			lastErr = fmt.Errorf("query %s via %s: %s", name, server, dns.RcodeToString[resp.Rcode])
		}
	}
	return nil, lastErr
}

// nameservers extracts NS targets from the answer section, skipping NS records of other owners
func nameservers(resp *dns.Msg) []string {
	owner := ""
	if len(resp.Question) > 0 {
		owner = resp.Question[0].Name
	}

	var ns []string
	for _, rr := range resp.Answer {
		record, ok := rr.(*dns.NS)
		if !ok {
			continue
		}
		if owner != "" && !strings.EqualFold(record.Hdr.Name, owner) {
			continue
		}
		ns = append(ns, zone.Normalize(record.Ns))
	}
	return ns
}
