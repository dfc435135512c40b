package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cess-pro/Domain-Relation/internal/zone"
)

// DefaultNoNameservers is the nameserver value written for zones that resolved to no NS set
const DefaultNoNameservers = "~NO~NS~"

// Mapping holds the nameserver set of every zone found in an NS mapping file
type Mapping struct {
	ns     map[string][]string
	seen   map[string]map[string]struct{}
	noNS   map[string]struct{}
	pairs  int
	broken int
}

// NewMapping creates an empty mapping
func NewMapping() *Mapping {
	return &Mapping{
		ns:   make(map[string][]string),
		seen: make(map[string]map[string]struct{}),
		noNS: make(map[string]struct{}),
	}
}

// Add records that domain is served by ns. Duplicates are collapsed, first-seen order kept.
func (m *Mapping) Add(domain, ns string) {
	domain = zone.Normalize(domain)
	ns = zone.Normalize(ns)
	if domain == "" || ns == "" {
		return
	}

	set := m.seen[domain]
	if set == nil {
		set = make(map[string]struct{})
		m.seen[domain] = set
	}
	if _, exists := set[ns]; exists {
		return
	}
	set[ns] = struct{}{}
	m.ns[domain] = append(m.ns[domain], ns)
	m.pairs++
}

// MarkNoNameservers records that domain was looked up and resolved to no nameservers
func (m *Mapping) MarkNoNameservers(domain string) {
	domain = zone.Normalize(domain)
	if domain == "" {
		return
	}
	m.noNS[domain] = struct{}{}
}

// Nameservers returns the nameserver set of domain. ok is false when no data exists,
// either because the zone was never recorded or because it resolved to nothing.
func (m *Mapping) Nameservers(domain string) ([]string, bool) {
	ns, ok := m.ns[domain]
	return ns, ok
}

// NoNameservers reports whether domain was recorded with the no-nameserver sentinel and
// never with a real nameserver.
func (m *Mapping) NoNameservers(domain string) bool {
	if _, ok := m.ns[domain]; ok {
		return false
	}
	_, ok := m.noNS[domain]
	return ok
}

// Zones returns the number of zones with at least one nameserver
func (m *Mapping) Zones() int {
	return len(m.ns)
}

// Pairs returns the number of distinct (zone, nameserver) pairs
func (m *Mapping) Pairs() int {
	return m.pairs
}

// Skipped returns the number of malformed lines ignored while reading
func (m *Mapping) Skipped() int {
	return m.broken
}

// ReadMapping parses "domain<TAB>nameserver" lines. Lines whose nameserver equals
// sentinel mark the zone as resolving to no nameservers. Malformed lines are skipped.
func ReadMapping(r io.Reader, sentinel string) (*Mapping, error) {
	if sentinel == "" {
		sentinel = DefaultNoNameservers
	}

	m := NewMapping()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			m.broken++
			logrus.WithField("line", lineNum).Warnf("Skipping malformed mapping line: %q", line)
			continue
		}

		domain := fields[0]
		ns := strings.TrimRight(strings.TrimSpace(fields[1]), ".")
		if ns == sentinel {
			m.MarkNoNameservers(domain)
			continue
		}
		m.Add(domain, ns)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading mapping: %w", err)
	}

	return m, nil
}

// ReadMappingFile reads an NS mapping from a file
func ReadMappingFile(path, sentinel string) (*Mapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file: %w", err)
	}
	defer file.Close()

	return ReadMapping(file, sentinel)
}

// ReadDomains reads a ranked domain list. The first tab-separated field of each line is
// the domain; it is lowercased. Blank lines are skipped, line order is rank order.
func ReadDomains(r io.Reader) ([]string, error) {
	var domains []string
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		domain := zone.Normalize(strings.Split(line, "\t")[0])
		if domain == "" || domain == zone.Root {
			continue
		}
		domains = append(domains, domain)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading domains: %w", err)
	}

	return domains, nil
}

// ReadDomainsFile reads a ranked domain list from a file
func ReadDomainsFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open domain file: %w", err)
	}
	defer file.Close()

	return ReadDomains(file)
}
