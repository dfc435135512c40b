package nscollect

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cess-pro/Domain-Relation/internal/input"
)

type fakeQuerier struct {
	answers map[string][]string
	asked   []string
	cancel  string
	onAsk   func()
}

func (f *fakeQuerier) QueryNS(ctx context.Context, name string) ([]string, error) {
	f.asked = append(f.asked, name)
	if name == f.cancel && f.onAsk != nil {
		f.onAsk()
		return nil, ctx.Err()
	}
	if ns, ok := f.answers[name]; ok {
		return ns, nil
	}
	return nil, ErrNoNameservers
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestCollect(t *testing.T) {
	q := &fakeQuerier{answers: map[string][]string{
		"www.example.com": {"ns1.hoster.net"},
		"example.com":     {"ns1.hoster.net", "ns2.hoster.net"},
		"com":             {"a.gtld-servers.net"},
		"hoster.net":      {"ns1.hoster.net"},
		"net":             {"a.gtld-servers.net"},
	}}
	c := NewCollector(q, "")

	var buf bytes.Buffer
	require.NoError(t, c.Collect(context.Background(), &buf, []string{"WWW.Example.com."}))

	assert.Equal(t, []string{
		"www.example.com",
		"ns1.hoster.net",
		"hoster.net",
		"net",
		"a.gtld-servers.net",
		"gtld-servers.net",
		"example.com",
		"ns2.hoster.net",
		"com",
	}, q.asked, "depth first, every zone once")

	out := lines(buf.String())
	assert.Contains(t, out, "www.example.com\tns1.hoster.net")
	assert.Contains(t, out, "example.com\tns2.hoster.net")
	assert.Contains(t, out, "ns1.hoster.net\t~NO~NS~")
	assert.Contains(t, out, "gtld-servers.net\t~NO~NS~")

	stats := c.Stats()
	assert.Equal(t, 1, stats.Domains)
	assert.Equal(t, 9, stats.Zones)
	assert.Equal(t, 4, stats.Failed)
	assert.Equal(t, 6, stats.Records)
}

func TestCollectOutputReadsBack(t *testing.T) {
	q := &fakeQuerier{answers: map[string][]string{
		"a.b.c": {"x.y.z"},
	}}
	c := NewCollector(q, "")

	var buf bytes.Buffer
	require.NoError(t, c.Collect(context.Background(), &buf, []string{"a.b.c", "b.c"}))

	m, err := input.ReadMapping(strings.NewReader(buf.String()), "")
	require.NoError(t, err)

	ns, ok := m.Nameservers("a.b.c")
	require.True(t, ok)
	assert.Equal(t, []string{"x.y.z"}, ns)
	assert.True(t, m.NoNameservers("b.c"))
	assert.True(t, m.NoNameservers("y.z"))
	assert.Equal(t, 1, strings.Count(buf.String(), "\nb.c\t"), "b.c is queried once across domains")
}

func TestCollectCustomSentinel(t *testing.T) {
	c := NewCollector(&fakeQuerier{}, "-")

	var buf bytes.Buffer
	require.NoError(t, c.Collect(context.Background(), &buf, []string{"org", "."}))
	assert.Equal(t, "org\t-\n", buf.String())
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &fakeQuerier{
		answers: map[string][]string{"a.com": {"ns.a.com"}},
		cancel:  "com",
		onAsk:   cancel,
	}
	c := NewCollector(q, "")

	var buf bytes.Buffer
	err := c.Collect(ctx, &buf, []string{"a.com", "b.org"})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NotContains(t, q.asked, "b.org")
	assert.Contains(t, buf.String(), "a.com\tns.a.com", "lines written before the cancel are flushed")
}

func TestCollectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domain2ns.txt")
	c := NewCollector(&fakeQuerier{answers: map[string][]string{"example.org": {"ns.example.org"}}}, "")

	require.NoError(t, c.CollectFile(context.Background(), path, []string{"example.org"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"example.org\tns.example.org",
		"ns.example.org\t~NO~NS~",
		"org\t~NO~NS~",
	}, lines(string(raw)))
}
