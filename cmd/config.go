package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/detectors"
	"github.com/zpam/spamscan/pkg/plugins"
)

var (
	configForce bool
	configRules string
)

var detectorNames = []string{
	detectors.NameClassification,
	detectors.NamePhishing,
	detectors.NameIDNHomograph,
	detectors.NameVirus,
	detectors.NameExecutable,
	detectors.NameMacro,
	detectors.NameArbitrary,
	detectors.NamePattern,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Generate, validate and inspect spamscan configuration files`,
}

var configGenCmd = &cobra.Command{
	Use:   "generate [config-file]",
	Short: "Generate default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := "config.yaml"
		if len(args) > 0 {
			configPath = args[0]
		}

		if err := checkOverwrite(configPath); err != nil {
			return err
		}

		cfg := config.DefaultConfig()
		if configRules != "" {
			if err := checkOverwrite(configRules); err != nil {
				return err
			}
			if err := os.WriteFile(configRules, []byte(plugins.DefaultRules), 0644); err != nil {
				return fmt.Errorf("failed to write rules file: %w", err)
			}
			cfg.Rules.File = configRules
		}

		if err := cfg.SaveConfig(configPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ Configuration file generated: %s\n", configPath)
		if configRules != "" {
			fmt.Fprintf(out, "📝 Starter rules written to %s\n", configRules)
		}
		fmt.Fprintf(out, "🚀 Use 'spamscan scan --config %s <message>' to use the configuration\n", configPath)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Validate configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(args[0])
		if err != nil {
			return fmt.Errorf("❌ configuration validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ Configuration is valid: %s\n", args[0])

		if warnings := configWarnings(cfg); len(warnings) > 0 {
			fmt.Fprintf(out, "\n⚠️  Warnings:\n")
			for _, w := range warnings {
				fmt.Fprintf(out, "  - %s\n", w)
			}
		}

		printConfigSummary(out, cfg)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Print the configuration after defaults, the --config file and SPAMSCAN_* environment overrides`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		printConfigSummary(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func checkOverwrite(path string) error {
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("file already exists: %s (use --force to overwrite)", path)
	}
	return nil
}

// configWarnings flags settings that are valid but probably unintended
func configWarnings(cfg *config.Config) []string {
	var warnings []string

	known := make(map[string]bool, len(detectorNames))
	for _, n := range detectorNames {
		known[n] = true
	}
	for _, d := range cfg.Detectors.Disabled {
		if !known[strings.ToLower(d)] {
			warnings = append(warnings, fmt.Sprintf("unknown detector %q in detectors.disabled", d))
		}
	}
	for _, p := range cfg.Patterns.Enabled {
		if !detectors.IsPattern(p) {
			warnings = append(warnings, fmt.Sprintf("unknown pattern %q in patterns.enabled", p))
		}
	}
	for _, p := range cfg.Verdict.ExcludedPatterns {
		if !detectors.IsPattern(p) {
			warnings = append(warnings, fmt.Sprintf("unknown pattern %q in verdict.excluded_patterns", p))
		}
	}

	if cfg.Classifier.Enabled && cfg.Classifier.Backend == "file" && cfg.Classifier.ModelPath == "" {
		warnings = append(warnings, "classifier is enabled without a model_path, classification will be skipped")
	}
	if cfg.Milter.Enabled && cfg.Milter.RejectSpam && !cfg.Milter.AddSpamHeaders {
		warnings = append(warnings, "milter rejects spam but adds no headers, clean mail carries no verdict")
	}
	if cfg.Detectors.TimeoutMs > 60000 {
		warnings = append(warnings, "detectors timeout_ms above one minute can stall the MTA")
	}
	return warnings
}

func printConfigSummary(w io.Writer, cfg *config.Config) {
	var enabled []string
	for _, n := range detectorNames {
		if cfg.IsDetectorEnabled(n) {
			enabled = append(enabled, n)
		}
	}

	fmt.Fprintf(w, "\n🎯 Detectors:\n")
	fmt.Fprintf(w, "  Enabled: %s\n", strings.Join(enabled, ", "))
	fmt.Fprintf(w, "  Timeout: %dms\n", cfg.Detectors.TimeoutMs)
	fmt.Fprintf(w, "  Patterns: %s\n", strings.Join(cfg.Patterns.Enabled, ", "))
	if len(cfg.Verdict.ExcludedPatterns) > 0 {
		fmt.Fprintf(w, "  Excluded from verdict: %s\n", strings.Join(cfg.Verdict.ExcludedPatterns, ", "))
	}

	fmt.Fprintf(w, "\n🔤 Tokenizer:\n")
	fmt.Fprintf(w, "  Default locale: %s (stem mode %s)\n", cfg.Tokenizer.DefaultLocale, cfg.Tokenizer.StemMode)
	fmt.Fprintf(w, "  Mixed language: %v\n", cfg.Tokenizer.MixedLanguage)

	fmt.Fprintf(w, "\n🧠 Classifier:\n")
	fmt.Fprintf(w, "  Enabled: %v (backend %s)\n", cfg.Classifier.Enabled, cfg.Classifier.Backend)
	switch cfg.Classifier.Backend {
	case "redis":
		fmt.Fprintf(w, "  Redis key: %s\n", cfg.Classifier.Redis.Key)
	default:
		fmt.Fprintf(w, "  Model: %s\n", cfg.Classifier.ModelPath)
	}

	fmt.Fprintf(w, "\n🌐 Lookups:\n")
	fmt.Fprintf(w, "  Reputation: %v (%s)\n", cfg.Reputation.Enabled, cfg.Reputation.Zone)
	fmt.Fprintf(w, "  Antivirus: %v\n", cfg.Antivirus.Enabled)

	fmt.Fprintf(w, "\n📋 Rules:\n")
	fmt.Fprintf(w, "  File: %s\n", cfg.Rules.File)
	fmt.Fprintf(w, "  Lua scripts: %d\n", len(cfg.Rules.LuaScripts))
	if cfg.Rules.Dir != "" {
		fmt.Fprintf(w, "  Directory: %s\n", cfg.Rules.Dir)
	}

	fmt.Fprintf(w, "\n📧 Milter:\n")
	fmt.Fprintf(w, "  Address: %s://%s\n", cfg.Milter.Network, cfg.Milter.Address)
	fmt.Fprintf(w, "  Reject spam: %v\n", cfg.Milter.RejectSpam)
}

func init() {
	configGenCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite existing files")
	configGenCmd.Flags().StringVar(&configRules, "rules", "", "Also write a starter rules file here")

	configCmd.AddCommand(configGenCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
