package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents spamscan configuration
type Config struct {
	// Text normalization and tokenization
	Tokenizer TokenizerConfig `yaml:"tokenizer"`

	// Domain/homograph risk analysis
	Homograph HomographConfig `yaml:"homograph"`

	// DNS-over-HTTPS blocklist lookups
	Reputation ReputationConfig `yaml:"reputation"`

	// Attachment virus scanning
	Antivirus AntivirusConfig `yaml:"antivirus"`

	// Statistical classifier model
	Classifier ClassifierConfig `yaml:"classifier"`

	// Detector execution
	Detectors DetectorsConfig `yaml:"detectors"`

	// Simple pattern detectors
	Patterns PatternsConfig `yaml:"patterns"`

	// Custom regex and Lua rules
	Rules RulesConfig `yaml:"rules"`

	// Verdict composition
	Verdict VerdictConfig `yaml:"verdict"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`

	// Milter server settings
	Milter MilterConfig `yaml:"milter"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics"`
}

// TokenizerConfig contains normalization and stemming settings
type TokenizerConfig struct {
	DefaultLocale      string   `yaml:"default_locale"`
	MixedLanguage      bool     `yaml:"mixed_language"`
	StemMode           string   `yaml:"stem_mode"` // standard, advanced
	FailOnUnsupported  bool     `yaml:"fail_on_unsupported"`
	AdvancedExclusions []string `yaml:"advanced_exclusions"`
	HashTokens         bool     `yaml:"hash_tokens"`
	HashLength         int      `yaml:"hash_length"`
	MaskSensitive      bool     `yaml:"mask_sensitive"`
	ExtraLetters       string   `yaml:"extra_letters"` // regexp character class body
}

// HomographConfig contains domain risk settings
type HomographConfig struct {
	BrandThreshold   float64  `yaml:"brand_threshold"`
	FindingThreshold float64  `yaml:"finding_threshold"` // report score that becomes a finding
	Brands           []string `yaml:"brands"`            // added to the built-in list
	Whitelist        []string `yaml:"whitelist"`         // added to the built-in list
}

// ReputationConfig contains DNS-over-HTTPS blocklist settings
type ReputationConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"` // JSON DoH resolver
	Zone          string `yaml:"zone"`     // blocklist zone appended to the host
	TimeoutMs     int    `yaml:"timeout_ms"`
	CacheSize     int    `yaml:"cache_size"`
	CacheTTLMin   int    `yaml:"cache_ttl_min"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	MaxHosts      int    `yaml:"max_hosts"` // lookups per message
}

// AntivirusConfig contains VirusTotal settings
type AntivirusConfig struct {
	Enabled            bool   `yaml:"enabled"`
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	TimeoutMs          int    `yaml:"timeout_ms"`
	MaxAttachmentBytes int64  `yaml:"max_attachment_bytes"`
}

// ClassifierConfig contains model loading settings
type ClassifierConfig struct {
	Enabled      bool        `yaml:"enabled"`
	Backend      string      `yaml:"backend"` // file, redis
	ModelPath    string      `yaml:"model_path"`
	SpamCategory string      `yaml:"spam_category"`
	Redis        RedisConfig `yaml:"redis"`
}

// RedisConfig locates a model blob in Redis
type RedisConfig struct {
	URL         string `yaml:"url"`
	Key         string `yaml:"key"`
	DatabaseNum int    `yaml:"database_num"`
}

// DetectorsConfig controls the detector fan-out
type DetectorsConfig struct {
	TimeoutMs int      `yaml:"timeout_ms"` // per detector
	Disabled  []string `yaml:"disabled"`
}

// PatternsConfig selects the simple pattern detectors
type PatternsConfig struct {
	Enabled []string `yaml:"enabled"`
}

// RulesConfig contains custom rule sources
type RulesConfig struct {
	File       string   `yaml:"file"`
	LuaScripts []string `yaml:"lua_scripts"`
	Dir        string   `yaml:"dir"` // every *.yaml, *.yml and *.lua below it
	TimeoutMs  int      `yaml:"timeout_ms"`
}

// VerdictConfig contains verdict composition settings
type VerdictConfig struct {
	// Pattern names reported but ignored when deciding spam
	ExcludedPatterns []string `yaml:"excluded_patterns"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MilterConfig contains milter server settings
type MilterConfig struct {
	Enabled bool `yaml:"enabled"`

	// Network and address for milter socket
	Network string `yaml:"network"` // "tcp" or "unix"
	Address string `yaml:"address"` // "127.0.0.1:7357" or "/tmp/spamscan.sock"

	ReadTimeoutMs  int `yaml:"read_timeout_ms"`
	WriteTimeoutMs int `yaml:"write_timeout_ms"`

	SkipConnect bool `yaml:"skip_connect"`
	SkipHelo    bool `yaml:"skip_helo"`

	GracefulShutdownTimeout int `yaml:"graceful_shutdown_timeout_ms"`

	RejectSpam       bool   `yaml:"reject_spam"`
	RejectMessage    string `yaml:"reject_message"`
	AddSpamHeaders   bool   `yaml:"add_spam_headers"`
	SpamHeaderPrefix string `yaml:"spam_header_prefix"`
}

// MetricsConfig contains Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// DefaultConfig returns spamscan default configuration
func DefaultConfig() *Config {
	return &Config{
		Tokenizer: TokenizerConfig{
			DefaultLocale:      "en",
			MixedLanguage:      false,
			StemMode:           "standard",
			AdvancedExclusions: []string{"hu"},
			HashLength:         16,
			MaskSensitive:      true,
		},
		Homograph: HomographConfig{
			BrandThreshold:   0.8,
			FindingThreshold: 0.6,
		},
		Reputation: ReputationConfig{
			Enabled:       true,
			Endpoint:      "https://dns.google/resolve",
			Zone:          "dbl.spamhaus.org",
			TimeoutMs:     3000,
			CacheSize:     5000,
			CacheTTLMin:   30,
			MaxConcurrent: 8,
			MaxHosts:      16,
		},
		Antivirus: AntivirusConfig{
			Enabled:            false,
			BaseURL:            "https://www.virustotal.com/api/v3",
			TimeoutMs:          10000,
			MaxAttachmentBytes: 32 << 20,
		},
		Classifier: ClassifierConfig{
			Enabled:      true,
			Backend:      "file",
			SpamCategory: "spam",
			Redis: RedisConfig{
				URL: "redis://localhost:6379",
				Key: "spamscan:model",
			},
		},
		Detectors: DetectorsConfig{
			TimeoutMs: 15000,
		},
		Patterns: PatternsConfig{
			Enabled: []string{"credit_card", "mac_address", "file_path"},
		},
		Rules: RulesConfig{
			TimeoutMs: 2000,
		},
		Verdict: VerdictConfig{
			ExcludedPatterns: []string{"file_path"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Milter: MilterConfig{
			Enabled:                 false,
			Network:                 "tcp",
			Address:                 "127.0.0.1:7357",
			ReadTimeoutMs:           10000,
			WriteTimeoutMs:          10000,
			GracefulShutdownTimeout: 30000,
			RejectSpam:              false,
			RejectMessage:           "5.7.1 Message rejected as spam",
			AddSpamHeaders:          true,
			SpamHeaderPrefix:        "X-Spamscan-",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9357",
		},
	}
}

// LoadConfig loads configuration from a YAML file. Values from a .env file and
// SPAMSCAN_* environment variables are applied on top of the file.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file not found: %s", configPath)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// applyEnv overlays secrets and endpoints from the environment
func (c *Config) applyEnv() {
	if v := os.Getenv("SPAMSCAN_VIRUSTOTAL_API_KEY"); v != "" {
		c.Antivirus.APIKey = v
		c.Antivirus.Enabled = true
	}
	if v := os.Getenv("SPAMSCAN_REDIS_URL"); v != "" {
		c.Classifier.Redis.URL = v
	}
	if v := os.Getenv("SPAMSCAN_MODEL_PATH"); v != "" {
		c.Classifier.ModelPath = v
	}
	if v := os.Getenv("SPAMSCAN_DOH_ENDPOINT"); v != "" {
		c.Reputation.Endpoint = v
	}
	if v := os.Getenv("SPAMSCAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// SaveConfig saves configuration to a YAML file
func (c *Config) SaveConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks configuration values
func (c *Config) Validate() error {
	if c.Tokenizer.StemMode != "standard" && c.Tokenizer.StemMode != "advanced" {
		return fmt.Errorf("tokenizer stem_mode must be 'standard' or 'advanced'")
	}

	if c.Tokenizer.HashTokens && (c.Tokenizer.HashLength < 4 || c.Tokenizer.HashLength > 64) {
		return fmt.Errorf("tokenizer hash_length must be between 4 and 64")
	}

	if c.Homograph.BrandThreshold <= 0 || c.Homograph.BrandThreshold >= 1 {
		return fmt.Errorf("homograph brand_threshold must be in (0, 1)")
	}

	if c.Homograph.FindingThreshold < 0 || c.Homograph.FindingThreshold > 1 {
		return fmt.Errorf("homograph finding_threshold must be in [0, 1]")
	}

	if c.Reputation.Enabled {
		if c.Reputation.Endpoint == "" {
			return fmt.Errorf("reputation endpoint cannot be empty when enabled")
		}
		if c.Reputation.TimeoutMs < 100 {
			return fmt.Errorf("reputation timeout_ms must be >= 100")
		}
		if c.Reputation.MaxConcurrent < 1 {
			return fmt.Errorf("reputation max_concurrent must be >= 1")
		}
		if c.Reputation.MaxHosts < 1 {
			return fmt.Errorf("reputation max_hosts must be >= 1")
		}
	}

	if c.Antivirus.Enabled && c.Antivirus.APIKey == "" {
		return fmt.Errorf("antivirus api_key is required when enabled")
	}

	if c.Classifier.Enabled {
		switch c.Classifier.Backend {
		case "file":
		case "redis":
			if c.Classifier.Redis.URL == "" || c.Classifier.Redis.Key == "" {
				return fmt.Errorf("classifier redis url and key are required for the redis backend")
			}
		default:
			return fmt.Errorf("classifier backend must be 'file' or 'redis'")
		}
		if c.Classifier.SpamCategory == "" {
			return fmt.Errorf("classifier spam_category cannot be empty")
		}
	}

	if c.Detectors.TimeoutMs < 10 {
		return fmt.Errorf("detectors timeout_ms must be >= 10")
	}
	if err := c.validateBudgets(); err != nil {
		return err
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	validLevel := false
	for _, level := range validLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if c.Milter.Enabled {
		if c.Milter.Network != "tcp" && c.Milter.Network != "unix" {
			return fmt.Errorf("milter network must be 'tcp' or 'unix'")
		}

		if c.Milter.Address == "" {
			return fmt.Errorf("milter address cannot be empty when enabled")
		}

		if c.Milter.ReadTimeoutMs < 1000 {
			return fmt.Errorf("milter read_timeout_ms must be >= 1000")
		}

		if c.Milter.WriteTimeoutMs < 1000 {
			return fmt.Errorf("milter write_timeout_ms must be >= 1000")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics address cannot be empty when enabled")
	}

	return nil
}

// validateBudgets checks that every per-call timeout finishes inside the
// detector timeout that wraps it
func (c *Config) validateBudgets() error {
	budget := c.Detectors.TimeoutMs
	if c.Reputation.Enabled {
		rounds := (c.Reputation.MaxHosts + c.Reputation.MaxConcurrent - 1) / c.Reputation.MaxConcurrent
		if need := rounds * c.Reputation.TimeoutMs; need >= budget {
			return fmt.Errorf("reputation lookups need up to %dms (%d rounds of timeout_ms), more than detectors timeout_ms %d",
				need, rounds, budget)
		}
	}
	if c.Antivirus.Enabled && c.Antivirus.TimeoutMs >= budget {
		return fmt.Errorf("antivirus timeout_ms %d must be below detectors timeout_ms %d", c.Antivirus.TimeoutMs, budget)
	}
	if c.Rules.TimeoutMs >= budget {
		return fmt.Errorf("rules timeout_ms %d must be below detectors timeout_ms %d", c.Rules.TimeoutMs, budget)
	}
	return nil
}

// IsDetectorEnabled reports whether a detector was left on
func (c *Config) IsDetectorEnabled(name string) bool {
	for _, d := range c.Detectors.Disabled {
		if strings.EqualFold(d, name) {
			return false
		}
	}
	return true
}
