// Package report aggregates per-domain extra dependency metrics and the global graphs
// into the statistics of a measurement run.
package report

import (
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/cess-pro/Domain-Relation/internal/dependency"
	"github.com/cess-pro/Domain-Relation/internal/graph"
	"github.com/cess-pro/Domain-Relation/internal/policy"
	"github.com/cess-pro/Domain-Relation/internal/storage"
	"github.com/cess-pro/Domain-Relation/internal/zone"
)

// shallowDepth bounds the max extra depth counted as shallow
const shallowDepth = 4

// ExtraStat is the extra set measure of one domain in one relaxed mode
type ExtraStat struct {
	Size     int
	MaxDepth int
}

// DomainStat carries what the report needs about one analysed domain
type DomainStat struct {
	Domain string
	Rank   int
	Extra  map[policy.Mode]ExtraStat
}

// FromResults converts batch results
func FromResults(results []*dependency.Result) []DomainStat {
	stats := make([]DomainStat, 0, len(results))
	for _, res := range results {
		st := DomainStat{Domain: res.Domain, Rank: res.Rank, Extra: make(map[policy.Mode]ExtraStat)}
		for _, m := range policy.Relaxed {
			if mr, ok := res.Modes[m]; ok && mr.Extra != nil {
				st.Extra[m] = ExtraStat{Size: mr.Extra.Size, MaxDepth: mr.Extra.MaxDepth}
			}
		}
		stats = append(stats, st)
	}
	return stats
}

// FromSummaries converts stored summary rows. Rows of unknown modes are skipped.
func FromSummaries(summaries []storage.Summary) []DomainStat {
	index := make(map[string]int)
	var stats []DomainStat
	for _, sm := range summaries {
		m, err := policy.Parse(sm.Mode)
		if err != nil {
			logrus.WithField("domain", sm.Domain).Warnf("Skipping summary: %v", err)
			continue
		}
		i, ok := index[sm.Domain]
		if !ok {
			i = len(stats)
			index[sm.Domain] = i
			stats = append(stats, DomainStat{Domain: sm.Domain, Rank: sm.Rank, Extra: make(map[policy.Mode]ExtraStat)})
		}
		if m != policy.Essential {
			stats[i].Extra[m] = ExtraStat{Size: sm.ExtraSize, MaxDepth: sm.MaxExtraDepth}
		}
	}
	return stats
}

// Options tune the report
type Options struct {
	Top        int
	RankBucket int
}

// DensityRow is the size of a global graph relative to the essential one
type DensityRow struct {
	Mode            string  `json:"mode"`
	Edges           int     `json:"edges"`
	RelativeDensity float64 `json:"relative_density"`
}

// ZoneRow is a zone of the global critical graph with the number of zones depending on it
type ZoneRow struct {
	Zone       string `json:"zone"`
	Dependents int    `json:"dependents"`
}

// ExtraRow summarises the extra sets of one relaxed mode
type ExtraRow struct {
	Mode             string  `json:"mode"`
	NonEmpty         int     `json:"non_empty"`
	NonEmptyFraction float64 `json:"non_empty_fraction"`
	AvgNonEmptySize  float64 `json:"avg_non_empty_size"`
	Shallow          int     `json:"shallow"`
	ShallowFraction  float64 `json:"shallow_fraction"`
}

// BucketRow is the mean extra size per mode over a block of consecutive ranks
type BucketRow struct {
	FirstRank int                `json:"first_rank"`
	LastRank  int                `json:"last_rank"`
	Domains   int                `json:"domains"`
	MeanExtra map[string]float64 `json:"mean_extra"`
}

// SuffixRow groups domains by public suffix
type SuffixRow struct {
	Suffix           string             `json:"suffix"`
	Domains          int                `json:"domains"`
	MeanExtra        map[string]float64 `json:"mean_extra"`
	NonEmptyFraction map[string]float64 `json:"non_empty_fraction"`
}

// Report is the complete set of run statistics
type Report struct {
	Domains        int          `json:"domains"`
	EssentialEdges int          `json:"essential_edges"`
	Density        []DensityRow `json:"density"`
	TopZones       []ZoneRow    `json:"top_zones"`
	Extra          []ExtraRow   `json:"extra"`
	RankBuckets    []BucketRow  `json:"rank_buckets"`
	Suffixes       []SuffixRow  `json:"suffixes"`
}

// Build computes the report. global may be nil when only per-domain statistics are wanted.
func Build(stats []DomainStat, global *graph.Global, opts Options) *Report {
	if opts.Top < 1 {
		opts.Top = 50
	}
	if opts.RankBucket < 1 {
		opts.RankBucket = 10000
	}

	r := &Report{Domains: len(stats)}
	if global != nil {
		r.EssentialEdges, r.Density = density(global)
		r.TopZones = topZones(global.Mode(policy.Critical), opts.Top)
	}
	r.Extra = extraRows(stats)
	r.RankBuckets = rankBuckets(stats, opts.RankBucket)
	r.Suffixes = suffixRows(stats)
	return r
}

func density(global *graph.Global) (int, []DensityRow) {
	_, essential := global.Mode(policy.Essential).GetStats()
	rows := make([]DensityRow, 0, len(policy.Relaxed))
	for _, m := range policy.Relaxed {
		_, edges := global.Mode(m).GetStats()
		row := DensityRow{Mode: m.String(), Edges: edges}
		if essential > 0 {
			row.RelativeDensity = float64(edges) / float64(essential)
		}
		rows = append(rows, row)
	}
	return essential, rows
}

// topZones ranks zones by their ancestor count, the in-degree they would have in the
// transitive closure. Top-level names and the root are left out.
func topZones(g *graph.Graph, top int) []ZoneRow {
	var rows []ZoneRow
	for _, name := range g.Nodes() {
		if name == zone.Root || zone.IsTopLevel(name) {
			continue
		}
		rows = append(rows, ZoneRow{Zone: name, Dependents: g.AncestorCount(name)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Dependents != rows[j].Dependents {
			return rows[i].Dependents > rows[j].Dependents
		}
		return rows[i].Zone < rows[j].Zone
	})
	if len(rows) > top {
		rows = rows[:top]
	}
	return rows
}

func extraRows(stats []DomainStat) []ExtraRow {
	rows := make([]ExtraRow, 0, len(policy.Relaxed))
	for _, m := range policy.Relaxed {
		row := ExtraRow{Mode: m.String()}
		total := 0
		for _, st := range stats {
			ex := st.Extra[m]
			if ex.Size > 0 {
				row.NonEmpty++
				total += ex.Size
			}
			if ex.MaxDepth < shallowDepth {
				row.Shallow++
			}
		}
		if row.NonEmpty > 0 {
			row.AvgNonEmptySize = float64(total) / float64(row.NonEmpty)
		}
		if len(stats) > 0 {
			row.NonEmptyFraction = float64(row.NonEmpty) / float64(len(stats))
			row.ShallowFraction = float64(row.Shallow) / float64(len(stats))
		}
		rows = append(rows, row)
	}
	return rows
}

// rankBuckets averages over the domains actually present in each bucket
func rankBuckets(stats []DomainStat, size int) []BucketRow {
	type acc struct {
		domains int
		sums    map[policy.Mode]int
	}
	buckets := make(map[int]*acc)
	for _, st := range stats {
		if st.Rank < 1 {
			continue
		}
		idx := (st.Rank - 1) / size
		b, ok := buckets[idx]
		if !ok {
			b = &acc{sums: make(map[policy.Mode]int)}
			buckets[idx] = b
		}
		b.domains++
		for _, m := range policy.Relaxed {
			b.sums[m] += st.Extra[m].Size
		}
	}

	indexes := make([]int, 0, len(buckets))
	for idx := range buckets {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	rows := make([]BucketRow, 0, len(indexes))
	for _, idx := range indexes {
		b := buckets[idx]
		row := BucketRow{
			FirstRank: idx*size + 1,
			LastRank:  (idx + 1) * size,
			Domains:   b.domains,
			MeanExtra: make(map[string]float64),
		}
		for _, m := range policy.Relaxed {
			row.MeanExtra[m.String()] = float64(b.sums[m]) / float64(b.domains)
		}
		rows = append(rows, row)
	}
	return rows
}

// suffixRows groups by public suffix, largest groups first
func suffixRows(stats []DomainStat) []SuffixRow {
	type acc struct {
		domains  int
		sums     map[policy.Mode]int
		nonEmpty map[policy.Mode]int
	}
	groups := make(map[string]*acc)
	for _, st := range stats {
		suffix, _ := publicsuffix.PublicSuffix(st.Domain)
		g, ok := groups[suffix]
		if !ok {
			g = &acc{sums: make(map[policy.Mode]int), nonEmpty: make(map[policy.Mode]int)}
			groups[suffix] = g
		}
		g.domains++
		for _, m := range policy.Relaxed {
			size := st.Extra[m].Size
			g.sums[m] += size
			if size > 0 {
				g.nonEmpty[m]++
			}
		}
	}

	rows := make([]SuffixRow, 0, len(groups))
	for suffix, g := range groups {
		row := SuffixRow{
			Suffix:           suffix,
			Domains:          g.domains,
			MeanExtra:        make(map[string]float64),
			NonEmptyFraction: make(map[string]float64),
		}
		for _, m := range policy.Relaxed {
			row.MeanExtra[m.String()] = float64(g.sums[m]) / float64(g.domains)
			row.NonEmptyFraction[m.String()] = float64(g.nonEmpty[m]) / float64(g.domains)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Domains != rows[j].Domains {
			return rows[i].Domains > rows[j].Domains
		}
		return rows[i].Suffix < rows[j].Suffix
	})
	return rows
}
