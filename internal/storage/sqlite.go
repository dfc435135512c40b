package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/cess-pro/Domain-Relation/internal/dependency"
	"github.com/cess-pro/Domain-Relation/internal/graph"
	"github.com/cess-pro/Domain-Relation/internal/policy"
)

// Storage handles all database operations
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		node_id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain_name TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS graphs (
		graph_id INTEGER PRIMARY KEY AUTOINCREMENT,
		scope TEXT NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		domain_rank INTEGER DEFAULT 0,
		node_count INTEGER DEFAULT 0,
		edge_count INTEGER DEFAULT 0,
		extra_size INTEGER DEFAULT 0,
		avg_extra_depth REAL DEFAULT 0,
		max_extra_depth INTEGER DEFAULT 0,
		UNIQUE(scope, domain, mode)
	);

	CREATE TABLE IF NOT EXISTS graph_nodes (
		graph_id INTEGER NOT NULL,
		node_id INTEGER NOT NULL,
		FOREIGN KEY (graph_id) REFERENCES graphs(graph_id),
		FOREIGN KEY (node_id) REFERENCES nodes(node_id),
		UNIQUE(graph_id, node_id)
	);

	CREATE TABLE IF NOT EXISTS graph_edges (
		graph_id INTEGER NOT NULL,
		from_node_id INTEGER NOT NULL,
		to_node_id INTEGER NOT NULL,
		FOREIGN KEY (graph_id) REFERENCES graphs(graph_id),
		FOREIGN KEY (from_node_id) REFERENCES nodes(node_id),
		FOREIGN KEY (to_node_id) REFERENCES nodes(node_id),
		UNIQUE(graph_id, from_node_id, to_node_id)
	);

	CREATE TABLE IF NOT EXISTS extra_nodes (
		graph_id INTEGER NOT NULL,
		node_id INTEGER NOT NULL,
		depth INTEGER NOT NULL,
		FOREIGN KEY (graph_id) REFERENCES graphs(graph_id),
		FOREIGN KEY (node_id) REFERENCES nodes(node_id),
		UNIQUE(graph_id, node_id)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_domain ON nodes(domain_name);
	CREATE INDEX IF NOT EXISTS idx_graphs_domain ON graphs(scope, domain);
	CREATE INDEX IF NOT EXISTS idx_graph_edges_from ON graph_edges(graph_id, from_node_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertNode inserts a node if its domain is unknown
// Returns the node_id of the inserted/existing node
func (s *Storage) UpsertNode(domain string) (int, error) {
	return upsertNode(s.db, domain)
}

type execQuerier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func upsertNode(q execQuerier, domain string) (int, error) {
	_, err := q.Exec(`
		INSERT INTO nodes (domain_name)
		VALUES (?)
		ON CONFLICT(domain_name) DO NOTHING
	`, domain)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert node: %w", err)
	}

	var nodeID int
	err = q.QueryRow("SELECT node_id FROM nodes WHERE domain_name = ?", domain).Scan(&nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to retrieve node_id: %w", err)
	}

	return nodeID, nil
}

// GetNode retrieves a node by domain name, returns nil if not found
func (s *Storage) GetNode(domain string) (*Node, error) {
	var node Node
	err := s.db.QueryRow(`
		SELECT node_id, domain_name, created_at
		FROM nodes
		WHERE domain_name = ?
	`, domain).Scan(&node.NodeID, &node.DomainName, &node.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	return &node, nil
}

// graphRow is everything stored about one graph besides its nodes and edges
type graphRow struct {
	scope  string
	domain string
	mode   policy.Mode
	rank   int
	graph  *graph.Graph
	extra  *dependency.Extra
}

// SaveResult stores the four mode graphs of a domain and their metrics in one transaction
func (s *Storage) SaveResult(res *dependency.Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range policy.All {
		mr, ok := res.Modes[m]
		if !ok {
			continue
		}
		row := graphRow{
			scope:  ScopeDomain,
			domain: res.Domain,
			mode:   m,
			rank:   res.Rank,
			graph:  mr.Graph,
			extra:  mr.Extra,
		}
		if err := saveGraph(tx, row); err != nil {
			return fmt.Errorf("failed to save %s graph of %s: %w", m, res.Domain, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result of %s: %w", res.Domain, err)
	}
	return nil
}

// SaveGlobal stores the union graph of a mode
func (s *Storage) SaveGlobal(m policy.Mode, g *graph.Graph) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveGraph(tx, graphRow{scope: ScopeGlobal, mode: m, graph: g}); err != nil {
		return fmt.Errorf("failed to save global %s graph: %w", m, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit global %s graph: %w", m, err)
	}
	return nil
}

// saveGraph replaces the stored graph identified by scope, domain and mode
func saveGraph(tx *sql.Tx, row graphRow) error {
	nodeCount, edgeCount := row.graph.GetStats()
	var extraSize, maxDepth int
	var avgDepth float64
	if row.extra != nil {
		extraSize = row.extra.Size
		avgDepth = row.extra.AvgDepth
		maxDepth = row.extra.MaxDepth
	}

	_, err := tx.Exec(`
		INSERT INTO graphs (scope, domain, mode, domain_rank, node_count, edge_count, extra_size, avg_extra_depth, max_extra_depth)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope, domain, mode) DO UPDATE SET
			domain_rank = EXCLUDED.domain_rank,
			node_count = EXCLUDED.node_count,
			edge_count = EXCLUDED.edge_count,
			extra_size = EXCLUDED.extra_size,
			avg_extra_depth = EXCLUDED.avg_extra_depth,
			max_extra_depth = EXCLUDED.max_extra_depth
	`, row.scope, row.domain, row.mode.String(), row.rank, nodeCount, edgeCount, extraSize, avgDepth, maxDepth)
	if err != nil {
		return fmt.Errorf("failed to upsert graph: %w", err)
	}

	var graphID int
	err = tx.QueryRow("SELECT graph_id FROM graphs WHERE scope = ? AND domain = ? AND mode = ?",
		row.scope, row.domain, row.mode.String()).Scan(&graphID)
	if err != nil {
		return fmt.Errorf("failed to retrieve graph_id: %w", err)
	}

	for _, table := range []string{"graph_nodes", "graph_edges", "extra_nodes"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE graph_id = ?", graphID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	ids := make(map[string]int, nodeCount)
	for _, name := range row.graph.Nodes() {
		nodeID, err := upsertNode(tx, name)
		if err != nil {
			return err
		}
		ids[name] = nodeID
		if _, err := tx.Exec("INSERT INTO graph_nodes (graph_id, node_id) VALUES (?, ?)", graphID, nodeID); err != nil {
			return fmt.Errorf("failed to insert graph node %s: %w", name, err)
		}
	}

	for _, e := range row.graph.Edges() {
		_, err := tx.Exec("INSERT INTO graph_edges (graph_id, from_node_id, to_node_id) VALUES (?, ?, ?)",
			graphID, ids[e.From], ids[e.To])
		if err != nil {
			return fmt.Errorf("failed to insert edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	if row.extra != nil {
		for _, name := range row.extra.Nodes {
			_, err := tx.Exec("INSERT INTO extra_nodes (graph_id, node_id, depth) VALUES (?, ?, ?)",
				graphID, ids[name], row.extra.Depths[name])
			if err != nil {
				return fmt.Errorf("failed to insert extra node %s: %w", name, err)
			}
		}
	}

	return nil
}

// Flush writes a finished batch: every domain result, then the union graph of every mode.
// A failing write is logged and the flush goes on; all failures are returned together.
func (s *Storage) Flush(results []*dependency.Result, global *graph.Global) error {
	startTime := time.Now()
	logrus.Info("Starting flush to database...")

	var errs *multierror.Error
	written := 0
	for _, res := range results {
		if err := s.SaveResult(res); err != nil {
			logrus.Warnf("Failed to flush %s: %v", res.Domain, err)
			errs = multierror.Append(errs, err)
			continue
		}
		written++
	}

	if global != nil {
		for _, m := range policy.All {
			if err := s.SaveGlobal(m, global.Mode(m)); err != nil {
				logrus.Warnf("Failed to flush global %s graph: %v", m, err)
				errs = multierror.Append(errs, err)
			}
		}
	}

	logrus.Infof("Flush complete: %d of %d domains written in %v", written, len(results), time.Since(startTime))
	return errs.ErrorOrNil()
}

// LoadGraph reads a stored graph, returns nil if it does not exist
func (s *Storage) LoadGraph(scope, domain string, m policy.Mode) (*graph.Graph, error) {
	var graphID int
	err := s.db.QueryRow("SELECT graph_id FROM graphs WHERE scope = ? AND domain = ? AND mode = ?",
		scope, domain, m.String()).Scan(&graphID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}

	g := graph.New()

	rows, err := s.db.Query(`
		SELECT n.domain_name
		FROM graph_nodes gn JOIN nodes n ON n.node_id = gn.node_id
		WHERE gn.graph_id = ?
	`, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph nodes: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		g.AddNode(name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	rows.Close()

	rows, err = s.db.Query(`
		SELECT f.domain_name, t.domain_name
		FROM graph_edges e
		JOIN nodes f ON f.node_id = e.from_node_id
		JOIN nodes t ON t.node_id = e.to_node_id
		WHERE e.graph_id = ?
	`, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		g.AddEdge(from, to)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return g, nil
}

// LoadGlobal reads the union graph of every mode. Modes never stored come back empty.
func (s *Storage) LoadGlobal() (*graph.Global, error) {
	global := graph.NewGlobal()
	for _, m := range policy.All {
		g, err := s.LoadGraph(ScopeGlobal, "", m)
		if err != nil {
			return nil, err
		}
		if g != nil {
			global.Mode(m).Merge(g)
		}
	}
	return global, nil
}

// LoadSummaries returns the metrics rows of every stored domain, ordered by rank
func (s *Storage) LoadSummaries() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT domain, domain_rank, mode, node_count, edge_count, extra_size, avg_extra_depth, max_extra_depth
		FROM graphs
		WHERE scope = ?
		ORDER BY domain_rank ASC, domain ASC, mode ASC
	`, ScopeDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.Domain, &sm.Rank, &sm.Mode, &sm.NodeCount, &sm.EdgeCount,
			&sm.ExtraSize, &sm.AvgExtraDepth, &sm.MaxExtraDepth); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, sm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}

	return summaries, nil
}

// LoadExtraNodes returns the extra nodes of a domain in a relaxed mode with their depth
func (s *Storage) LoadExtraNodes(domain string, m policy.Mode) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT n.domain_name, x.depth
		FROM extra_nodes x
		JOIN graphs g ON g.graph_id = x.graph_id
		JOIN nodes n ON n.node_id = x.node_id
		WHERE g.scope = ? AND g.domain = ? AND g.mode = ?
	`, ScopeDomain, domain, m.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load extra nodes: %w", err)
	}
	defer rows.Close()

	depths := make(map[string]int)
	for rows.Next() {
		var name string
		var depth int
		if err := rows.Scan(&name, &depth); err != nil {
			return nil, fmt.Errorf("failed to scan extra node: %w", err)
		}
		depths[name] = depth
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating extra nodes: %w", err)
	}

	return depths, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
