// Package nscollect gathers the nameserver mapping the dependency builder reads: the NS set
// of every listed domain, of each of its parent zones, and recursively of the zones that
// host those nameservers.
package nscollect

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/cess-pro/Domain-Relation/internal/input"
	"github.com/cess-pro/Domain-Relation/internal/zone"
)

// Stats counts the work of a collection run
type Stats struct {
	Domains int
	Zones   int
	Failed  int
	Records int
}

// Collector queries zones once each and writes "zone<TAB>ns" lines
type Collector struct {
	querier  Querier
	sentinel string
	seen     map[string]struct{}
	stats    Stats
}

// NewCollector creates a collector. An empty sentinel selects input.DefaultNoNameservers.
func NewCollector(querier Querier, sentinel string) *Collector {
	if sentinel == "" {
		sentinel = input.DefaultNoNameservers
	}
	return &Collector{
		querier:  querier,
		sentinel: sentinel,
		seen:     make(map[string]struct{}),
	}
}

// Stats returns the counters of the runs so far
func (c *Collector) Stats() Stats {
	return c.stats
}

// Collect walks every domain in order and writes the mapping lines to w. A zone already
// queried, in this call or an earlier one, is not queried again.
func (c *Collector) Collect(ctx context.Context, w io.Writer, domains []string) error {
	bw := bufio.NewWriter(w)

	for _, d := range domains {
		if err := ctx.Err(); err != nil {
			return multierror.Append(err, bw.Flush()).ErrorOrNil()
		}
		domain := zone.Normalize(d)
		if domain == "" || domain == zone.Root {
			continue
		}
		c.stats.Domains++

		if err := c.walk(ctx, bw, domain); err != nil {
			return multierror.Append(err, bw.Flush()).ErrorOrNil()
		}

		if c.stats.Domains%100 == 0 {
			logrus.Infof("Collected %d domains: %d zones queried, %d without nameservers",
				c.stats.Domains, c.stats.Zones, c.stats.Failed)
		}
	}

	return bw.Flush()
}

// walk expands domain into its ancestors and follows every returned nameserver depth first
func (c *Collector) walk(ctx context.Context, w *bufio.Writer, domain string) error {
	stack := pushReversed(nil, zone.Ancestors(domain))

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := c.seen[current]; ok {
			continue
		}
		c.seen[current] = struct{}{}

		ns, err := c.query(ctx, w, current)
		if err != nil {
			return err
		}

		// Zones of later nameservers are handled after those of earlier ones
		for i := len(ns) - 1; i >= 0; i-- {
			stack = pushReversed(stack, zone.Ancestors(ns[i]))
		}
	}
	return nil
}

// query looks up one zone and writes its lines. Only write and context errors are returned.
func (c *Collector) query(ctx context.Context, w *bufio.Writer, name string) ([]string, error) {
	c.stats.Zones++
	log := logrus.WithField("zone", name)

	ns, err := c.querier.QueryNS(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debugf("No nameservers: %v", err)
		c.stats.Failed++
		if _, err := fmt.Fprintf(w, "%s\t%s\n", name, c.sentinel); err != nil {
			return nil, fmt.Errorf("failed to write mapping line: %w", err)
		}
		return nil, nil
	}

	log.Debugf("Found %d nameservers", len(ns))
	for _, n := range ns {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", name, n); err != nil {
			return nil, fmt.Errorf("failed to write mapping line: %w", err)
		}
		c.stats.Records++
	}
	return ns, nil
}

func pushReversed(stack, names []string) []string {
	for i := len(names) - 1; i >= 0; i-- {
		stack = append(stack, names[i])
	}
	return stack
}

// CollectFile runs Collect into a newly created file at path
func (c *Collector) CollectFile(ctx context.Context, path string, domains []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	var errs *multierror.Error
	if err := c.Collect(ctx, f, domains); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := f.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to close output file: %w", err))
	}
	return errs.ErrorOrNil()
}
