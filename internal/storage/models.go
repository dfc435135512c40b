package storage

import "time"

// Graph scopes
const (
	ScopeDomain = "domain"
	ScopeGlobal = "global"
)

// Node represents a zone appearing in any stored graph
type Node struct {
	NodeID     int
	DomainName string
	CreatedAt  time.Time
}

// Summary is the stored metrics row of one domain in one mode
type Summary struct {
	Domain        string
	Rank          int
	Mode          string
	NodeCount     int
	EdgeCount     int
	ExtraSize     int
	AvgExtraDepth float64
	MaxExtraDepth int
}

// Metrics tracks batch statistics for export on exit
type Metrics struct {
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	DomainsQueued     int       `json:"domains_queued"`
	DomainsAnalyzed   int       `json:"domains_analyzed"`
	DomainsFailed     int       `json:"domains_failed"`
	NodesDiscovered   int       `json:"nodes_discovered"`
	EdgesRecorded     int       `json:"edges_recorded"`
	MissingLookups    int       `json:"missing_lookups"`
	TotalBuildTimeMs  int64     `json:"total_build_time_ms"`
	AvgBuildTimeMs    int64     `json:"avg_build_time_ms"`
	TerminationReason string    `json:"termination_reason"`
}
