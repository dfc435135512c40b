package dependency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cess-pro/Domain-Relation/internal/graph"
	"github.com/cess-pro/Domain-Relation/internal/policy"
)

// ModeResult is the dependency graph of one domain in one mode. Extra is nil for the
// essential mode.
type ModeResult struct {
	Mode  policy.Mode
	Graph *graph.Graph
	Extra *Extra
}

// Result holds the four mode graphs of a domain and the metrics of the relaxed ones
type Result struct {
	Domain  string
	Rank    int
	Modes   map[policy.Mode]*ModeResult
	Elapsed time.Duration
}

// Graph returns the dependency graph built for mode m
func (r *Result) Graph(m policy.Mode) *graph.Graph {
	if mr, ok := r.Modes[m]; ok {
		return mr.Graph
	}
	return nil
}

// Analyzer builds all mode graphs of single domains
type Analyzer struct {
	builder *Builder
}

// NewAnalyzer creates an analyzer on top of a builder
func NewAnalyzer(builder *Builder) *Analyzer {
	return &Analyzer{builder: builder}
}

// Analyze builds the essential, general, explicit and critical graphs of domain, in that
// order, then measures each relaxed graph against the essential one.
//
// A relaxed graph that cannot be measured is replaced by a copy of the essential graph with
// an empty extra set. The result is still returned, together with the measurement errors.
func (a *Analyzer) Analyze(domain string, rank int) (*Result, error) {
	start := time.Now()
	res := &Result{
		Domain: domain,
		Rank:   rank,
		Modes:  make(map[policy.Mode]*ModeResult, len(policy.All)),
	}

	for _, m := range policy.All {
		g := graph.New()
		g.AddNode(domain)
		a.builder.Build(domain, g, m)
		res.Modes[m] = &ModeResult{Mode: m, Graph: g}
	}

	var errs *multierror.Error
	essential := res.Graph(policy.Essential)
	for _, m := range policy.Relaxed {
		extra, err := ComputeExtra(domain, essential, res.Graph(m))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s graph of %s: %w", m, domain, err))
			degraded := graph.New()
			degraded.Merge(essential)
			res.Modes[m].Graph = degraded
			extra = &Extra{Depths: make(map[string]int)}
		}
		res.Modes[m].Extra = extra
	}
	res.Elapsed = time.Since(start)

	logrus.WithField("domain", domain).Debugf("Analyzed: extra general=%d explicit=%d critical=%d",
		res.Modes[policy.General].Extra.Size,
		res.Modes[policy.Explicit].Extra.Size,
		res.Modes[policy.Critical].Extra.Size)

	return res, errs.ErrorOrNil()
}

// Batch runs an analyzer over a ranked domain list
type Batch struct {
	analyzer   *Analyzer
	workers    int
	maxDomains int
	onResult   func(*Result)

	// OnFailure, when set, is called for every domain whose analysis was degraded
	OnFailure func(domain string, err error)
}

// NewBatch creates a batch run. workers below 1 means one domain at a time, maxDomains
// of 0 means no cap. onResult may be nil; with more than one worker it is called
// concurrently.
func NewBatch(analyzer *Analyzer, workers, maxDomains int, onResult func(*Result)) *Batch {
	if workers < 1 {
		workers = 1
	}
	return &Batch{
		analyzer:   analyzer,
		workers:    workers,
		maxDomains: maxDomains,
		onResult:   onResult,
	}
}

// Run analyses domains in rank order and returns the results in the same order.
// Repeated domains keep their first rank. A degraded domain is logged and kept.
// Cancelling ctx stops scheduling new domains; the results gathered so far are returned
// together with the context error.
func (b *Batch) Run(ctx context.Context, domains []string) ([]*Result, error) {
	queue := b.Queue(domains)
	logrus.Infof("Analyzing %d domains with %d workers", len(queue), b.workers)

	results := make([]*Result, len(queue))
	var mu sync.Mutex

	var group errgroup.Group
	group.SetLimit(b.workers)

	for i, domain := range queue {
		if ctx.Err() != nil {
			break
		}
		i, domain := i, domain
		group.Go(func() error {
			res, err := b.analyzer.Analyze(domain, i+1)
			if err != nil {
				logrus.WithField("domain", domain).Errorf("Analysis degraded to structural graphs: %v", err)
				if b.OnFailure != nil {
					b.OnFailure(domain, err)
				}
			}

			mu.Lock()
			results[i] = res
			mu.Unlock()

			if b.onResult != nil {
				b.onResult(res)
			}
			return nil
		})
	}
	_ = group.Wait()

	done := make([]*Result, 0, len(results))
	for _, res := range results {
		if res != nil {
			done = append(done, res)
		}
	}

	return done, ctx.Err()
}

// Queue returns the domains Run would analyse: first occurrences only, capped at maxDomains.
// A domain's rank is its position in this list plus one.
func (b *Batch) Queue(domains []string) []string {
	queue := dedupe(domains)
	if b.maxDomains > 0 && len(queue) > b.maxDomains {
		queue = queue[:b.maxDomains]
	}
	return queue
}

func dedupe(domains []string) []string {
	seen := make(map[string]struct{}, len(domains))
	unique := make([]string, 0, len(domains))
	for _, d := range domains {
		if _, ok := seen[d]; ok {
			logrus.WithField("domain", d).Debug("Skipping repeated domain")
			continue
		}
		seen[d] = struct{}{}
		unique = append(unique, d)
	}
	return unique
}
