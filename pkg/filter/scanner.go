package filter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/detectors"
	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/findings"
	"github.com/zpam/spamscan/pkg/profiler"
	"github.com/zpam/spamscan/pkg/task"
	"github.com/zpam/spamscan/pkg/tokenizer"
	"go.uber.org/zap"
)

// HamMessage is the verdict message when nothing contributed to spam
const HamMessage = "Ham"

// Scanner runs the detector set over a message and composes a verdict
type Scanner struct {
	config    *config.Config
	parser    *email.Parser
	tokenizer *tokenizer.Tokenizer
	detectors []detectors.Detector
	timeout   time.Duration
	excluded  map[string]bool
	logger    *zap.Logger

	stats    *profiler.ScanStats
	timings  *profiler.Profiler
	metrics  *profiler.Metrics
	closeFns []func()

	moveMu sync.Mutex // ScanDir destination names
}

// NewScanner builds a scanner from cfg. Collaborators not supplied through
// options are created from the configuration.
func NewScanner(cfg *config.Config, opts ...Option) (*Scanner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	s := &Scanner{
		config:   cfg,
		parser:   email.NewParser(),
		timeout:  time.Duration(cfg.Detectors.TimeoutMs) * time.Millisecond,
		excluded: make(map[string]bool),
		logger:   o.logger,
		stats:    o.stats,
		timings:  profiler.NewProfiler(),
		metrics:  o.metrics,
	}
	if s.stats == nil {
		s.stats = &profiler.ScanStats{}
	}
	for _, name := range cfg.Verdict.ExcludedPatterns {
		s.excluded[name] = true
	}

	tok, err := NewTokenizer(cfg.Tokenizer, o.logger)
	if err != nil {
		return nil, err
	}
	s.tokenizer = tok

	deps, err := s.buildDeps(o)
	if err != nil {
		s.Close()
		return nil, err
	}

	list := o.detectors
	if list == nil {
		list = detectors.Default(deps)
	}
	for _, d := range list {
		if cfg.IsDetectorEnabled(d.Name) {
			s.detectors = append(s.detectors, d)
		}
	}

	return s, nil
}

// Close releases rule VMs and other collaborator resources
func (s *Scanner) Close() {
	for _, fn := range s.closeFns {
		fn()
	}
	s.closeFns = nil
}

// Tokenizer returns the tokenizer shared by the classifier and the verdict
func (s *Scanner) Tokenizer() *tokenizer.Tokenizer {
	return s.tokenizer
}

// Stats returns the running scan counters
func (s *Scanner) Stats() profiler.ScanSnapshot {
	return s.stats.Snapshot()
}

// Timings returns per-detector timing statistics
func (s *Scanner) Timings() *profiler.Profiler {
	return s.timings
}

// Scan produces a verdict for input. input is message bytes, a string, an
// email.Path or an io.Reader. email.ErrMalformedInput is the only error.
func (s *Scanner) Scan(ctx context.Context, input any) (*findings.Verdict, error) {
	start := time.Now()
	logger := s.logger.With(zap.String("scan_id", uuid.NewString()))

	msg, source, err := s.parser.Load(input)
	if err != nil {
		logger.Debug("rejecting scan input", zap.Error(err))
		return nil, err
	}
	logger.Debug("message loaded",
		zap.Stringer("source", source),
		zap.Int("attachments", len(msg.Attachments)))

	snap := detectors.NewSnapshot(msg, s.tokenizer.Strings)
	all := s.runDetectors(ctx, snap, logger)

	isSpam, message := Compose(all, s.excluded)
	findings.Sort(all)

	verdict := &findings.Verdict{
		IsSpam:   isSpam,
		Message:  message,
		Findings: all,
		Links:    snap.Links(),
		Tokens:   snap.Tokens(),
	}

	elapsed := time.Since(start)
	s.stats.Observe(elapsed, isSpam)
	if s.metrics != nil {
		s.metrics.ObserveScan(elapsed, isSpam)
		for _, f := range all {
			s.metrics.ObserveFinding(string(f.Kind()))
		}
	}

	logger.Info("scan complete",
		zap.Bool("spam", isSpam),
		zap.Int("findings", len(all)),
		zap.Duration("elapsed", elapsed))

	return verdict, nil
}

// runDetectors starts one goroutine per detector and waits for all of them.
// A failed or panicking detector contributes nothing. A timed out detector
// contributes the findings it reported before the deadline.
func (s *Scanner) runDetectors(ctx context.Context, snap *detectors.Snapshot, logger *zap.Logger) []findings.Finding {
	results := make([][]findings.Finding, len(s.detectors))

	var wg sync.WaitGroup
	for i, d := range s.detectors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Debug("detector panicked", zap.String("detector", d.Name), zap.Any("panic", r))
				}
			}()

			partial := &detectors.Partial{}
			out := task.Run(detectors.WithPartial(ctx, partial), s.timeout, func(ctx context.Context) ([]findings.Finding, error) {
				return d.Run(ctx, snap)
			})
			s.timings.Record(d.Name, out.Elapsed)
			if s.metrics != nil {
				s.metrics.ObserveDetector(d.Name, out.Elapsed, out.State.String())
			}

			if out.State == task.TimedOut {
				results[i] = partial.Findings()
				logger.Debug("detector timed out",
					zap.String("detector", d.Name),
					zap.Int("partial_findings", len(results[i])))
				return
			}
			if !out.OK() {
				logger.Debug("detector failed",
					zap.String("detector", d.Name),
					zap.Stringer("state", out.State),
					zap.Error(out.Err))
				return
			}
			results[i] = out.Value
		}()
	}
	wg.Wait()

	var all []findings.Finding
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

// Compose applies the verdict rule to a finding set. Pattern findings named
// in excluded are reported but do not make a message spam.
func Compose(all []findings.Finding, excluded map[string]bool) (bool, string) {
	contributing := make(map[findings.Kind]bool)
	for _, f := range all {
		if p, ok := f.(findings.Pattern); ok && excluded[p.Name] {
			continue
		}
		contributing[f.Kind()] = true
	}

	var reasons []string
	for _, k := range findings.Kinds {
		if contributing[k] {
			reasons = append(reasons, k.Reason())
		}
	}
	if len(reasons) == 0 {
		return false, HamMessage
	}
	return true, "Spam: " + joinReasons(reasons)
}

// joinReasons joins phrases as "a", "a and b" or "a, b and c"
func joinReasons(reasons []string) string {
	switch len(reasons) {
	case 0:
		return ""
	case 1:
		return reasons[0]
	default:
		return fmt.Sprintf("%s and %s", strings.Join(reasons[:len(reasons)-1], ", "), reasons[len(reasons)-1])
	}
}
