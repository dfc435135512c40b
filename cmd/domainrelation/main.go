package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cess-pro/Domain-Relation/internal/config"
	"github.com/cess-pro/Domain-Relation/internal/version"
)

var (
	rootCmd = &cobra.Command{
		Use:               "domainrelation",
		Short:             "Measure transitive DNS zone dependencies of ranked domain lists",
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}

	configPath string
	logLevel   string

	cfg *config.Config
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "config.json", "path to the JSON configuration file")
	flags.StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// loadConfig reads the configuration and sets up logging before any command runs.
// A missing default config file means built-in defaults; an explicit --config must exist.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.LoadConfig(configPath)
	switch {
	case err == nil:
		cfg = loaded
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	default:
		return err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	if cfg == loaded {
		logrus.Debugf("Configuration loaded from %s", configPath)
	} else {
		logrus.Debugf("No %s found, using defaults", configPath)
	}
	return nil
}

func main() {
	// Configure logging
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}
}
