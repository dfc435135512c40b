package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cess-pro/Domain-Relation/internal/report"
	"github.com/cess-pro/Domain-Relation/internal/storage"
)

var (
	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Print statistics of the stored dependency graphs",
		RunE:  runReport,
	}

	reportFormat string
	reportOutput string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	flags := reportCmd.Flags()
	flags.StringVarP(&reportFormat, "format", "f", "text", "output format: text or json")
	flags.StringVarP(&reportOutput, "output", "o", "", "write to this file instead of stdout")
	flags.Int("top", 0, "number of most depended zones to list (overrides report_top)")
}

func runReport(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("top") {
		cfg.ReportTop, _ = cmd.Flags().GetInt("top")
	}
	if reportFormat != "text" && reportFormat != "json" {
		return fmt.Errorf("unknown format %q", reportFormat)
	}

	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	summaries, err := store.LoadSummaries()
	if err != nil {
		return err
	}
	global, err := store.LoadGlobal()
	if err != nil {
		return err
	}

	r := report.Build(report.FromSummaries(summaries), global, report.Options{
		Top:        cfg.ReportTop,
		RankBucket: cfg.RankBucket,
	})

	var out io.Writer = cmd.OutOrStdout()
	if reportOutput != "" {
		f, err := os.Create(reportOutput)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if reportFormat == "json" {
		return r.WriteJSON(out)
	}
	return r.WriteText(out)
}
