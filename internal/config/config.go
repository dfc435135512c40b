package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/cess-pro/Domain-Relation/internal/input"
)

// Config holds all runtime configuration parameters
type Config struct {
	DomainFile   string `json:"domain_file"`
	NSFile       string `json:"ns_file"`
	NoNSSentinel string `json:"no_ns_sentinel"`

	DBPath         string `json:"db_path"`
	MetricsPath    string `json:"metrics_path"`
	PrometheusPath string `json:"prometheus_path"`
	GraphDir       string `json:"graph_dir"`
	SaveGraphs     bool   `json:"save_graphs"`
	ExportDir      string `json:"export_dir"`
	DegreeLimit    int    `json:"degree_limit"`

	MaxDomains        int    `json:"max_domains"`
	Workers           int    `json:"workers"`
	LogLevel          string `json:"log_level"`
	ProgressIntervalS int    `json:"progress_interval_s"`

	ReportTop  int `json:"report_top"`
	RankBucket int `json:"rank_bucket"`

	Resolvers        []string `json:"resolvers"`
	QPS              float64  `json:"qps"`
	RequestTimeoutMs int      `json:"request_timeout_ms"`
	RetryAttempts    int      `json:"retry_attempts"`
	CollectOutput    string   `json:"collect_output"`
}

// LoadConfig reads and validates configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Apply defaults for missing values
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for unspecified fields
func ApplyDefaults(cfg *Config) {
	if cfg.NoNSSentinel == "" {
		cfg.NoNSSentinel = input.DefaultNoNameservers
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "domainrelation.db"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
	if cfg.GraphDir == "" {
		cfg.GraphDir = "graphs"
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "export"
	}
	if cfg.DegreeLimit == 0 {
		cfg.DegreeLimit = 2
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ProgressIntervalS == 0 {
		cfg.ProgressIntervalS = 10
	}
	if cfg.ReportTop == 0 {
		cfg.ReportTop = 50
	}
	if cfg.RankBucket == 0 {
		cfg.RankBucket = 10000
	}
	if len(cfg.Resolvers) == 0 {
		cfg.Resolvers = []string{"9.9.9.9:53", "1.1.1.1:53"}
	}
	if cfg.QPS == 0 {
		cfg.QPS = 50
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 3000
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.CollectOutput == "" {
		cfg.CollectOutput = "domain2ns.txt"
	}
}

// Validate checks that values are sensible. Input files are checked by the commands that need them.
func Validate(cfg *Config) error {
	if cfg.DegreeLimit < 0 {
		return fmt.Errorf("degree_limit must be >= 0")
	}
	if cfg.MaxDomains < 0 {
		return fmt.Errorf("max_domains must be >= 0")
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if cfg.ProgressIntervalS < 1 {
		return fmt.Errorf("progress_interval_s must be >= 1")
	}
	if cfg.ReportTop < 1 {
		return fmt.Errorf("report_top must be >= 1")
	}
	if cfg.RankBucket < 1 {
		return fmt.Errorf("rank_bucket must be >= 1")
	}
	for _, r := range cfg.Resolvers {
		if _, _, err := net.SplitHostPort(r); err != nil {
			return fmt.Errorf("resolver %q must be host:port: %w", r, err)
		}
	}
	if cfg.QPS <= 0 {
		return fmt.Errorf("qps must be > 0")
	}
	if cfg.RequestTimeoutMs < 100 {
		return fmt.Errorf("request_timeout_ms must be >= 100")
	}
	if cfg.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be >= 1")
	}
	return nil
}
