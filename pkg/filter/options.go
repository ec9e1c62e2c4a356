package filter

import (
	"github.com/zpam/spamscan/pkg/detectors"
	"github.com/zpam/spamscan/pkg/homograph"
	"github.com/zpam/spamscan/pkg/learning"
	"github.com/zpam/spamscan/pkg/plugins"
	"github.com/zpam/spamscan/pkg/profiler"
	"go.uber.org/zap"
)

type options struct {
	logger *zap.Logger

	classifier    learning.Classifier
	hasClassifier bool
	analyzer      *homograph.Analyzer
	reputation    detectors.Reputation
	hasReputation bool
	antivirus     plugins.VirusScanner
	hasAntivirus  bool
	rules         []plugins.Evaluator
	hasRules      bool
	detectors     []detectors.Detector

	stats   *profiler.ScanStats
	metrics *profiler.Metrics
}

// Option customizes a Scanner
type Option func(*options)

// WithLogger sets the logger used by the scanner and the collaborators it builds
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClassifier replaces the model named in the configuration. A nil
// classifier disables classification.
func WithClassifier(c learning.Classifier) Option {
	return func(o *options) {
		o.classifier = c
		o.hasClassifier = true
	}
}

// WithAnalyzer shares a domain risk analyzer, and its cache, with the scanner
func WithAnalyzer(a *homograph.Analyzer) Option {
	return func(o *options) { o.analyzer = a }
}

// WithReputation replaces the DNS blocklist client. nil disables lookups.
func WithReputation(r detectors.Reputation) Option {
	return func(o *options) {
		o.reputation = r
		o.hasReputation = true
	}
}

// WithAntivirus replaces the VirusTotal scanner. nil disables virus scanning.
func WithAntivirus(v plugins.VirusScanner) Option {
	return func(o *options) {
		o.antivirus = v
		o.hasAntivirus = true
	}
}

// WithRules replaces the configured rule file and Lua scripts
func WithRules(rules ...plugins.Evaluator) Option {
	return func(o *options) {
		o.rules = rules
		o.hasRules = true
	}
}

// WithDetectors replaces the default detector list
func WithDetectors(list ...detectors.Detector) Option {
	return func(o *options) { o.detectors = list }
}

// WithStats makes several scanners share one set of running counters
func WithStats(s *profiler.ScanStats) Option {
	return func(o *options) { o.stats = s }
}

// WithMetrics exports scan telemetry to Prometheus
func WithMetrics(m *profiler.Metrics) Option {
	return func(o *options) { o.metrics = m }
}
