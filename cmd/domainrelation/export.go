package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cess-pro/Domain-Relation/internal/dependency"
	"github.com/cess-pro/Domain-Relation/internal/export"
	"github.com/cess-pro/Domain-Relation/internal/policy"
	"github.com/cess-pro/Domain-Relation/internal/storage"
	"github.com/cess-pro/Domain-Relation/internal/zone"
)

var exportCmd = &cobra.Command{
	Use:   "export [domain...]",
	Short: "Write force-layout files of the stored global graphs, and DOT files of the given domains",
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	flags := exportCmd.Flags()
	flags.Int("degree-limit", 0, "keep zones with in- or out-degree above this (overrides degree_limit)")
	flags.String("dir", "", "output directory (overrides export_dir)")
}

func runExport(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("degree-limit") {
		cfg.DegreeLimit, _ = flags.GetInt("degree-limit")
	}
	if flags.Changed("dir") {
		cfg.ExportDir, _ = flags.GetString("dir")
	}

	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	global, err := store.LoadGlobal()
	if err != nil {
		return err
	}
	if err := export.WriteGlobalLayouts(cfg.ExportDir, global, cfg.DegreeLimit); err != nil {
		return err
	}

	for _, arg := range args {
		domain := zone.Normalize(arg)
		res, err := loadResult(store, domain)
		if err != nil {
			return err
		}
		if res == nil {
			logrus.WithField("domain", domain).Warn("Domain not stored, skipping")
			continue
		}
		if err := export.WriteDomainGraphs(cfg.ExportDir, res); err != nil {
			return err
		}
		logrus.WithField("domain", domain).Infof("Graphs written to %s", cfg.ExportDir)
	}
	return nil
}

// loadResult rebuilds the stored graphs of a domain, returns nil if none are stored
func loadResult(store *storage.Storage, domain string) (*dependency.Result, error) {
	res := &dependency.Result{Domain: domain, Modes: make(map[policy.Mode]*dependency.ModeResult)}
	for _, m := range policy.All {
		g, err := store.LoadGraph(storage.ScopeDomain, domain, m)
		if err != nil {
			return nil, err
		}
		if g == nil {
			continue
		}
		mr := &dependency.ModeResult{Mode: m, Graph: g}
		if m != policy.Essential {
			depths, err := store.LoadExtraNodes(domain, m)
			if err != nil {
				return nil, err
			}
			mr.Extra = &dependency.Extra{Depths: depths, Size: len(depths)}
		}
		res.Modes[m] = mr
	}
	if len(res.Modes) == 0 {
		return nil, nil
	}
	return res, nil
}
