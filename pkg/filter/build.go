package filter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/detectors"
	"github.com/zpam/spamscan/pkg/dns"
	"github.com/zpam/spamscan/pkg/homograph"
	"github.com/zpam/spamscan/pkg/learning"
	"github.com/zpam/spamscan/pkg/plugins"
	"github.com/zpam/spamscan/pkg/tokenizer"
	"go.uber.org/zap"
)

// modelLoadTimeout bounds reading the classifier blob at startup
const modelLoadTimeout = 10 * time.Second

// NewTokenizer creates the tokenizer described by cfg
func NewTokenizer(cfg config.TokenizerConfig, logger *zap.Logger) (*tokenizer.Tokenizer, error) {
	tok, err := tokenizer.New(tokenizer.Options{
		DefaultLocale:      cfg.DefaultLocale,
		MixedLanguage:      cfg.MixedLanguage,
		StemMode:           tokenizer.StemMode(cfg.StemMode),
		FailOnUnsupported:  cfg.FailOnUnsupported,
		AdvancedExclusions: cfg.AdvancedExclusions,
		HashTokens:         cfg.HashTokens,
		HashLength:         cfg.HashLength,
		MaskSensitive:      cfg.MaskSensitive,
		ExtraLetters:       cfg.ExtraLetters,
		Logger:             logger.Named("tokenizer"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	return tok, nil
}

// NewAnalyzer creates the domain risk analyzer described by cfg
func NewAnalyzer(cfg config.HomographConfig, logger *zap.Logger) *homograph.Analyzer {
	return homograph.New(homograph.Options{
		BrandThreshold: cfg.BrandThreshold,
		Brands:         cfg.Brands,
		Whitelist:      cfg.Whitelist,
		Logger:         logger.Named("homograph"),
	})
}

// buildDeps resolves every detector collaborator, preferring the ones passed
// as options
func (s *Scanner) buildDeps(o *options) (detectors.Deps, error) {
	cfg := s.config
	deps := detectors.Deps{
		SpamCategory:       cfg.Classifier.SpamCategory,
		FindingThreshold:   cfg.Homograph.FindingThreshold,
		MaxConcurrent:      cfg.Reputation.MaxConcurrent,
		MaxLookups:         cfg.Reputation.MaxHosts,
		AntivirusTimeout:   time.Duration(cfg.Antivirus.TimeoutMs) * time.Millisecond,
		MaxAttachmentBytes: cfg.Antivirus.MaxAttachmentBytes,
		RulesTimeout:       time.Duration(cfg.Rules.TimeoutMs) * time.Millisecond,
		Patterns:           cfg.Patterns.Enabled,
		Logger:             s.logger.Named("detectors"),
	}

	deps.Analyzer = o.analyzer
	if deps.Analyzer == nil {
		deps.Analyzer = NewAnalyzer(cfg.Homograph, s.logger)
	}

	if o.hasClassifier {
		deps.Classifier = o.classifier
	} else if cfg.Classifier.Enabled {
		nb, err := s.loadClassifier()
		if err != nil {
			return deps, err
		}
		if nb != nil {
			deps.Classifier = nb
		}
	}

	if o.hasReputation {
		deps.Reputation = o.reputation
	} else if cfg.Reputation.Enabled {
		deps.Reputation = dns.NewClient(dns.Config{
			Endpoint:      cfg.Reputation.Endpoint,
			Zone:          cfg.Reputation.Zone,
			Timeout:       time.Duration(cfg.Reputation.TimeoutMs) * time.Millisecond,
			CacheSize:     cfg.Reputation.CacheSize,
			CacheTTL:      time.Duration(cfg.Reputation.CacheTTLMin) * time.Minute,
			EnableCaching: cfg.Reputation.CacheSize > 0,
		}, s.logger.Named("dns"))
	}

	if o.hasAntivirus {
		deps.Antivirus = o.antivirus
	} else if cfg.Antivirus.Enabled {
		vt, err := plugins.NewVirusTotalScanner(plugins.VirusTotalConfig{
			APIKey:  cfg.Antivirus.APIKey,
			BaseURL: cfg.Antivirus.BaseURL,
			Timeout: deps.AntivirusTimeout,
		})
		if err != nil {
			return deps, fmt.Errorf("failed to create virus scanner: %w", err)
		}
		deps.Antivirus = vt
	}

	if o.hasRules {
		deps.Rules = o.rules
	} else {
		rules, err := s.loadRules()
		if err != nil {
			return deps, err
		}
		deps.Rules = rules
	}

	return deps, nil
}

// loadClassifier reads the model blob from the configured backend. A file
// backend without a path runs without classification.
func (s *Scanner) loadClassifier() (*learning.NaiveBayes, error) {
	cfg := s.config.Classifier
	ctx, cancel := context.WithTimeout(context.Background(), modelLoadTimeout)
	defer cancel()

	var store learning.ModelStore
	switch cfg.Backend {
	case "redis":
		rs, err := learning.NewRedisStore(ctx, &learning.RedisConfig{
			RedisURL:    cfg.Redis.URL,
			Key:         cfg.Redis.Key,
			DatabaseNum: cfg.Redis.DatabaseNum,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open model store: %w", err)
		}
		defer rs.Close()
		store = rs
	default:
		if cfg.ModelPath == "" {
			s.logger.Warn("classifier enabled but no model_path set, classification is off")
			return nil, nil
		}
		store = learning.FileStore{Path: cfg.ModelPath}
	}

	nb, err := learning.LoadClassifier(ctx, store, s.tokenizer.Strings)
	if err != nil {
		if errors.Is(err, learning.ErrModelNotFound) {
			s.logger.Warn("no classifier model in store, classification is off")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}

	info := nb.Info()
	s.logger.Info("classifier loaded",
		zap.String("backend", cfg.Backend),
		zap.Strings("categories", info.Categories),
		zap.Int("vocabulary", info.VocabularySize))
	return nb, nil
}

// loadRules compiles the YAML rule file and every Lua script
func (s *Scanner) loadRules() ([]plugins.Evaluator, error) {
	cfg := s.config.Rules
	var rules []plugins.Evaluator

	if cfg.File != "" {
		rs, err := plugins.LoadRuleFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		s.logger.Info("rules loaded", zap.String("file", cfg.File), zap.Int("rules", rs.Len()))
		rules = append(rules, rs)
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	for _, path := range cfg.LuaScripts {
		lr, err := plugins.NewLuaRule(path, timeout, s.logger.Named("lua"))
		if err != nil {
			return nil, fmt.Errorf("failed to load Lua rule %s: %w", path, err)
		}
		s.closeFns = append(s.closeFns, lr.Close)
		rules = append(rules, lr)
	}

	if cfg.Dir != "" {
		dirRules, closeFn, err := plugins.NewLoader(cfg.Dir, timeout, s.logger.Named("lua")).Load()
		s.closeFns = append(s.closeFns, closeFn)
		if err != nil {
			return nil, err
		}
		s.logger.Info("rules loaded", zap.String("dir", cfg.Dir), zap.Int("sources", len(dirRules)))
		rules = append(rules, dirRules...)
	}

	return rules, nil
}
