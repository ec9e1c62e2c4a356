package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/filter"
	"github.com/zpam/spamscan/pkg/logging"
	"go.uber.org/zap"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "spamscan",
	Short: "spamscan - content risk scoring for email",
	Long: `spamscan scans email messages and explains why they look like spam.

Each message runs through a fixed set of detectors (statistical classifier,
phishing links, look-alike domains, attachments, content rules and sensitive
data patterns). The verdict lists every finding and the reasons behind it.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging level (debug, info, warn, error)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(tokenizeCmd)
	rootCmd.AddCommand(domainCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(benchmarkCmd)
	rootCmd.AddCommand(milterCmd)
}

// loadConfig reads --config and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// setup loads the configuration and builds the logger
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newScanner builds a scanner with the command's logger
func newScanner(cfg *config.Config, logger *zap.Logger, opts ...filter.Option) (*filter.Scanner, error) {
	opts = append([]filter.Option{filter.WithLogger(logger)}, opts...)
	s, err := filter.NewScanner(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}
	return s, nil
}
