package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cess-pro/Domain-Relation/internal/config"
	"github.com/cess-pro/Domain-Relation/internal/dependency"
	"github.com/cess-pro/Domain-Relation/internal/export"
	"github.com/cess-pro/Domain-Relation/internal/graph"
	"github.com/cess-pro/Domain-Relation/internal/input"
	"github.com/cess-pro/Domain-Relation/internal/metrics"
	"github.com/cess-pro/Domain-Relation/internal/storage"
	"github.com/cess-pro/Domain-Relation/internal/version"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the dependency graphs of every listed domain and store them",
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	flags := buildCmd.Flags()
	flags.String("domains", "", "ranked domain list (overrides domain_file)")
	flags.String("ns", "", "domain to nameserver mapping (overrides ns_file)")
	flags.Int("workers", 0, "domains analysed in parallel (overrides workers)")
	flags.Int("max-domains", 0, "analyse at most this many domains (overrides max_domains)")
	flags.Bool("save-graphs", false, "render every per-domain graph as DOT into graph_dir")
}

func applyBuildFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("domains") {
		cfg.DomainFile, _ = flags.GetString("domains")
	}
	if flags.Changed("ns") {
		cfg.NSFile, _ = flags.GetString("ns")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("max-domains") {
		cfg.MaxDomains, _ = flags.GetInt("max-domains")
	}
	if flags.Changed("save-graphs") {
		cfg.SaveGraphs, _ = flags.GetBool("save-graphs")
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	applyBuildFlags(cmd)
	if cfg.DomainFile == "" || cfg.NSFile == "" {
		return fmt.Errorf("domain_file and ns_file are required")
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logrus.Infof("Domain Relation v%s building...", version.Version)
	logrus.Infof("Configuration: domains=%s, ns=%s, workers=%d, max_domains=%d",
		cfg.DomainFile, cfg.NSFile, cfg.Workers, cfg.MaxDomains)

	// Initialize storage
	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	logrus.Infof("Database initialized: %s", cfg.DBPath)

	mapping, err := input.ReadMappingFile(cfg.NSFile, cfg.NoNSSentinel)
	if err != nil {
		return err
	}
	domains, err := input.ReadDomainsFile(cfg.DomainFile)
	if err != nil {
		return err
	}

	tracker := metrics.NewTracker()
	global := graph.NewGlobal()
	builder := dependency.NewBuilder(mapping, global, tracker.RecordGrowth)

	onResult := func(res *dependency.Result) {
		tracker.IncrementDomainsAnalyzed()
		tracker.RecordBuildTime(res.Elapsed)
		if !cfg.SaveGraphs {
			return
		}
		if err := export.WriteDomainGraphs(cfg.GraphDir, res); err != nil {
			logrus.WithField("domain", res.Domain).Warnf("Failed to render graphs: %v", err)
		}
	}
	batch := dependency.NewBatch(dependency.NewAnalyzer(builder), cfg.Workers, cfg.MaxDomains, onResult)
	batch.OnFailure = func(string, error) { tracker.IncrementDomainsFailed() }
	tracker.AddDomainsQueued(len(batch.Queue(domains)))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Setup signal handler: first signal stops scheduling, second forces exit
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig := <-sigChan
		logrus.Infof("Received signal: %v, finishing running domains...", sig)
		cancel()

		sig = <-sigChan
		logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
		if err := tracker.WriteToFile(cfg.MetricsPath, "forced_exit"); err != nil {
			logrus.Errorf("Emergency metrics save failed: %v", err)
		}
		os.Exit(1)
	}()

	// Start progress logger
	stopProgress := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Duration(cfg.ProgressIntervalS) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stopProgress:
				return
			}
		}
	}()

	results, runErr := batch.Run(ctx, domains)
	terminationReason := "completed"
	if errors.Is(runErr, context.Canceled) {
		terminationReason = "signal"
	} else if runErr != nil {
		terminationReason = "error"
	}

	close(stopProgress)
	wg.Wait()

	logrus.Info("Step 1/3: Flushing graphs to database...")
	flushErr := store.Flush(results, global)
	if flushErr != nil {
		logrus.Errorf("Flush finished with errors: %v", flushErr)
	}

	logrus.Info("Step 2/3: Writing global graph exports...")
	if err := export.WriteGlobalLayouts(cfg.ExportDir, global, cfg.DegreeLimit); err != nil {
		logrus.Errorf("Failed to write exports: %v", err)
	}

	logrus.Info("Step 3/3: Writing final metrics...")
	logrus.Info("Final stats: " + tracker.LogProgress())
	if err := tracker.WriteToFile(cfg.MetricsPath, terminationReason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}
	if cfg.PrometheusPath != "" {
		if err := tracker.WritePrometheus(cfg.PrometheusPath); err != nil {
			logrus.Errorf("Failed to write prometheus metrics: %v", err)
		}
	}

	if terminationReason == "error" {
		return runErr
	}
	return flushErr
}
