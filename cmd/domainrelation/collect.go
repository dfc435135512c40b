package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cess-pro/Domain-Relation/internal/config"
	"github.com/cess-pro/Domain-Relation/internal/input"
	"github.com/cess-pro/Domain-Relation/internal/nscollect"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Query the nameservers of every listed domain and its dependencies into a mapping file",
	RunE:  runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	flags := collectCmd.Flags()
	flags.String("domains", "", "domain list to query (overrides domain_file)")
	flags.StringP("output", "o", "", "mapping file to write (overrides collect_output)")
	flags.StringSlice("resolver", nil, "resolver host:port, repeatable (overrides resolvers)")
	flags.Float64("qps", 0, "queries per second across all resolvers (overrides qps)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("domains") {
		cfg.DomainFile, _ = flags.GetString("domains")
	}
	if flags.Changed("output") {
		cfg.CollectOutput, _ = flags.GetString("output")
	}
	if flags.Changed("resolver") {
		cfg.Resolvers, _ = flags.GetStringSlice("resolver")
	}
	if flags.Changed("qps") {
		cfg.QPS, _ = flags.GetFloat64("qps")
	}
	if cfg.DomainFile == "" {
		return fmt.Errorf("domain_file is required")
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	domains, err := input.ReadDomainsFile(cfg.DomainFile)
	if err != nil {
		return err
	}

	querier, err := nscollect.NewDNSQuerier(cfg.Resolvers,
		time.Duration(cfg.RequestTimeoutMs)*time.Millisecond, cfg.QPS, cfg.RetryAttempts)
	if err != nil {
		return err
	}
	collector := nscollect.NewCollector(querier, cfg.NoNSSentinel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.Infof("Collecting nameservers of %d domains via %v at %.0f qps into %s",
		len(domains), cfg.Resolvers, cfg.QPS, cfg.CollectOutput)

	err = collector.CollectFile(ctx, cfg.CollectOutput, domains)
	stats := collector.Stats()
	logrus.Infof("Collection finished: %d domains, %d zones queried, %d without nameservers, %d records",
		stats.Domains, stats.Zones, stats.Failed, stats.Records)

	if err != nil && ctx.Err() == context.Canceled {
		logrus.Warn("Collection interrupted, output is partial")
	}
	return err
}
