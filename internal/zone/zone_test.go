package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Example.COM", "example.com"},
		{" ns1.example.net. ", "ns1.example.net"},
		{".", Root},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestParent(t *testing.T) {
	assert.Equal(t, "b.c", Parent("a.b.c"))
	assert.Equal(t, "c", Parent("b.c"))
	assert.Equal(t, Root, Parent("c"))
	assert.Equal(t, Root, Parent(Root))
	assert.Equal(t, Root, Parent("trailing."))
}

func TestIsWithin(t *testing.T) {
	assert.True(t, IsWithin("example.com", "com"))
	assert.True(t, IsWithin("com", "com"))
	assert.True(t, IsWithin("anything", Root))
	assert.False(t, IsWithin("badexample.com", "example.com"), "suffix match must respect label boundaries")
	assert.False(t, IsWithin("com", "example.com"))
}

func TestAncestors(t *testing.T) {
	assert.Equal(t, []string{"a.b.c", "b.c", "c"}, Ancestors("a.b.c"))
	assert.Equal(t, []string{"com"}, Ancestors("com"))
	assert.Nil(t, Ancestors(Root))
}

func TestIsTopLevel(t *testing.T) {
	assert.True(t, IsTopLevel("com"))
	assert.False(t, IsTopLevel("example.com"))
	assert.False(t, IsTopLevel(Root))
}

func TestHasGlue(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		ns     string
		want   bool
	}{
		{"in-bailiwick", "example.com", "ns1.example.com", true},
		{"out-of-bailiwick", "example.com", "ns1.example.net", false},
		{"tld is root authoritative", "com", "a.gtld-servers.net", true},
		{"tld with anything", "org", "x", true},
		{"sibling zone under same parent", "a.com", "ns.b.com", true},
		{"same parent zone", "a.com", "ns.com", true},
		{"deeper in-bailiwick", "p.q", "ns1.p.q", true},
		{"unrelated", "p.q", "ns2.r.s", false},
		{"label boundary respected", "a.b.c", "ns.xb.c", false},
		{"a.b.c via x.y.z", "a.b.c", "x.y.z", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasGlue(tt.domain, tt.ns))
		})
	}
}
