package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	vm "github.com/VictoriaMetrics/metrics"

	"github.com/cess-pro/Domain-Relation/internal/storage"
)

// Tracker holds and manages batch metrics
type Tracker struct {
	mu   sync.Mutex
	data storage.Metrics

	set             *vm.Set
	domainsQueued   *vm.Counter
	domainsAnalyzed *vm.Counter
	domainsFailed   *vm.Counter
	nodesDiscovered *vm.Counter
	edgesRecorded   *vm.Counter
	missingLookups  *vm.Counter
	buildSeconds    *vm.Histogram

	totalBuildTimeMs int64
	buildCount       int
}

// NewTracker creates a new metrics tracker
func NewTracker() *Tracker {
	set := vm.NewSet()
	return &Tracker{
		data: storage.Metrics{
			StartTime: time.Now(),
		},
		set:             set,
		domainsQueued:   set.NewCounter("domainrelation_domains_queued_total"),
		domainsAnalyzed: set.NewCounter("domainrelation_domains_analyzed_total"),
		domainsFailed:   set.NewCounter("domainrelation_domains_failed_total"),
		nodesDiscovered: set.NewCounter("domainrelation_global_nodes_total"),
		edgesRecorded:   set.NewCounter("domainrelation_global_edges_total"),
		missingLookups:  set.NewCounter("domainrelation_missing_ns_lookups_total"),
		buildSeconds:    set.NewHistogram("domainrelation_domain_build_duration_seconds"),
	}
}

// AddDomainsQueued records domains handed to the batch
func (t *Tracker) AddDomainsQueued(n int) {
	t.domainsQueued.Add(n)
}

// IncrementDomainsAnalyzed increments the analyzed domains counter
func (t *Tracker) IncrementDomainsAnalyzed() {
	t.domainsAnalyzed.Inc()
}

// IncrementDomainsFailed increments the failed domains counter
func (t *Tracker) IncrementDomainsFailed() {
	t.domainsFailed.Inc()
}

// RecordGrowth is the builder callback: growth of the global graphs and missing nameserver lookups.
func (t *Tracker) RecordGrowth(nodesAdded, edgesAdded, missingNS int) {
	if nodesAdded > 0 {
		t.nodesDiscovered.Add(nodesAdded)
	}
	if edgesAdded > 0 {
		t.edgesRecorded.Add(edgesAdded)
	}
	if missingNS > 0 {
		t.missingLookups.Add(missingNS)
	}
}

// RecordBuildTime records how long one domain took to analyze in all modes
func (t *Tracker) RecordBuildTime(duration time.Duration) {
	t.buildSeconds.Update(duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalBuildTimeMs += duration.Milliseconds()
	t.buildCount++
}

// fill copies counter values into data. Caller holds mu.
func (t *Tracker) fill() {
	t.data.DomainsQueued = int(t.domainsQueued.Get())
	t.data.DomainsAnalyzed = int(t.domainsAnalyzed.Get())
	t.data.DomainsFailed = int(t.domainsFailed.Get())
	t.data.NodesDiscovered = int(t.nodesDiscovered.Get())
	t.data.EdgesRecorded = int(t.edgesRecorded.Get())
	t.data.MissingLookups = int(t.missingLookups.Get())
	t.data.TotalBuildTimeMs = t.totalBuildTimeMs
	if t.buildCount > 0 {
		t.data.AvgBuildTimeMs = t.totalBuildTimeMs / int64(t.buildCount)
	}
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fill()
	return t.data
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Finalize metrics
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.fill()

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// WritePrometheus writes the counters and the build time histogram in Prometheus text format
func (t *Tracker) WritePrometheus(path string) error {
	var buf bytes.Buffer
	t.set.WritePrometheus(&buf)

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write prometheus file: %w", err)
	}
	return nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	return fmt.Sprintf("Domains: %d/%d analyzed, %d failed | Global: %d nodes, %d edges | Missing NS: %d",
		t.domainsAnalyzed.Get(),
		t.domainsQueued.Get(),
		t.domainsFailed.Get(),
		t.nodesDiscovered.Get(),
		t.edgesRecorded.Get(),
		t.missingLookups.Get(),
	)
}
