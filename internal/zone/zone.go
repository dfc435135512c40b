package zone

import "strings"

// Root is the sentinel name of the DNS root zone
const Root = "."

// Normalize lowercases a name and strips surrounding whitespace and a trailing dot.
// The root itself is returned as Root.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == Root {
		return Root
	}
	name = strings.TrimRight(name, ".")
	if name == "" {
		return ""
	}
	return name
}

// Parent returns the registrable parent of a name: everything after its first label.
// Example: a.b.c -> b.c, com -> "."
func Parent(name string) string {
	idx := strings.IndexByte(name, '.')
	if idx < 0 || name == Root {
		return Root
	}
	parent := name[idx+1:]
	if parent == "" {
		return Root
	}
	return parent
}

// IsTopLevel reports whether name is a single label directly under the root
func IsTopLevel(name string) bool {
	return name != Root && name != "" && !strings.Contains(name, ".")
}

// IsWithin reports whether name equals ancestor or lies below it on a label boundary.
// Every name is within the root.
func IsWithin(name, ancestor string) bool {
	if ancestor == Root {
		return true
	}
	if name == ancestor {
		return true
	}
	return strings.HasSuffix(name, "."+ancestor)
}

// Ancestors returns name followed by each of its parents, excluding the root.
// Example: a.b.c -> [a.b.c b.c c]
func Ancestors(name string) []string {
	if name == "" || name == Root {
		return nil
	}
	var chain []string
	for current := name; current != Root; current = Parent(current) {
		chain = append(chain, current)
	}
	return chain
}

// HasGlue decides whether the reference "domain NS ns" is in-bailiwick, i.e. whether the
// referral from the parent of domain already carries the address of ns.
//
// A domain directly under the root always qualifies since the root is authoritative for
// every zone. Otherwise the zone of ns must be the parent zone of domain or lie below it.
func HasGlue(domain, ns string) bool {
	if !strings.Contains(domain, ".") {
		return true
	}
	return IsWithin(Parent(ns), Parent(domain))
}
