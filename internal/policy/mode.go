// Package policy defines the four dependency-counting modes and decides, per mode,
// whether a nameserver reference turns into a delegation edge.
package policy

import (
	"fmt"
	"strings"

	"github.com/cess-pro/Domain-Relation/internal/zone"
)

// Mode selects how strictly a nameserver reference counts as a dependency
type Mode int

const (
	// Essential counts no delegation at all, only parent zones
	Essential Mode = iota
	// General counts every nameserver
	General
	// Explicit counts nameservers that lack glue
	Explicit
	// Critical counts nameservers only when none of the domain's nameservers has glue
	Critical
)

// All lists every mode in build order. Essential comes first since the metrics of the
// other modes are measured against it.
var All = []Mode{Essential, General, Explicit, Critical}

// Relaxed lists the modes that are compared against Essential
var Relaxed = []Mode{General, Explicit, Critical}

var modeNames = map[Mode]string{
	Essential: "essential",
	General:   "general",
	Explicit:  "explicit",
	Critical:  "critical",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Parse converts a mode name back into a Mode
func Parse(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", name)
}

// Counts reports whether the reference "domain NS ns" yields a delegation edge in this
// mode. nameservers is the complete nameserver set of domain.
func (m Mode) Counts(domain, ns string, nameservers []string) bool {
	switch m {
	case General:
		return true
	case Explicit:
		return !zone.HasGlue(domain, ns)
	case Critical:
		return noneHasGlue(domain, nameservers)
	default:
		return false
	}
}

// noneHasGlue is true when every nameserver of domain is out-of-bailiwick, so at least
// one independent lookup is unavoidable.
func noneHasGlue(domain string, nameservers []string) bool {
	for _, ns := range nameservers {
		if zone.HasGlue(domain, ns) {
			return false
		}
	}
	return true
}
