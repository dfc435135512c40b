package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cess-pro/Domain-Relation/internal/report"
	"github.com/cess-pro/Domain-Relation/internal/storage"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildReportExport(t *testing.T) {
	dir := t.TempDir()
	domains := writeFile(t, dir, "top.txt", "p.q\t1\na.b.c\t2\nexample.com\t3\np.q\t4\n")
	ns := writeFile(t, dir, "domain2ns.txt", "p.q\tns1.p.q\np.q\tns2.r.s.\na.b.c\tx.y.z\nexample.com\t~NO~NS~\nbroken line\n")
	configPath := writeFile(t, dir, "config.json", fmt.Sprintf(`{
		"domain_file": %q,
		"ns_file": %q,
		"db_path": %q,
		"metrics_path": %q,
		"prometheus_path": %q,
		"export_dir": %q,
		"graph_dir": %q,
		"workers": 2,
		"log_level": "warn"
	}`, domains, ns,
		filepath.Join(dir, "test.db"),
		filepath.Join(dir, "metrics.json"),
		filepath.Join(dir, "metrics.prom"),
		filepath.Join(dir, "export"),
		filepath.Join(dir, "graphs")))

	_, err := execute(t, "--config", configPath, "build", "--save-graphs")
	require.NoError(t, err)

	store, err := storage.NewStorage(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	summaries, err := store.LoadSummaries()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.Len(t, summaries, 12, "three domains in four modes")

	for _, name := range []string{"metrics.json", "metrics.prom", "export/global_graph_general.js", "graphs/a.b.c.critical.dot"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	out, err := execute(t, "--config", configPath, "report", "--format", "json")
	require.NoError(t, err)
	var r report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, 3, r.Domains)
	assert.Equal(t, 7, r.EssentialEdges)

	_, err = execute(t, "--config", configPath, "export", "--dir", filepath.Join(dir, "again"), "a.b.c", "unknown.org")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "again", "a.b.c.general.dot"))
	assert.NoError(t, err)
}

func TestMissingExplicitConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.json"), "report")
	assert.ErrorContains(t, err, "failed to open config file")
}
