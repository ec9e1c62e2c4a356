package detectors

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/findings"
	"github.com/zpam/spamscan/pkg/homograph"
	"github.com/zpam/spamscan/pkg/learning"
	"github.com/zpam/spamscan/pkg/plugins"
	"github.com/zpam/spamscan/pkg/tokenizer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Detector names, also used by detectors.disabled in the config
const (
	NameClassification = "classification"
	NamePhishing       = "phishing"
	NameIDNHomograph   = "idn_homograph"
	NameVirus          = "virus"
	NameExecutable     = "executable"
	NameMacro          = "macro"
	NameArbitrary      = "arbitrary"
	NamePattern        = "pattern"
)

// Func inspects a snapshot and returns what it found
type Func func(ctx context.Context, s *Snapshot) ([]findings.Finding, error)

// Detector is one entry of the fixed detector list
type Detector struct {
	Name string
	Run  Func
}

// Reputation answers blocklist queries for hostnames
type Reputation interface {
	IsBlocked(ctx context.Context, host string) bool
}

// Deps are the collaborators detectors run with. Nil collaborators switch the
// corresponding checks off.
type Deps struct {
	Classifier   learning.Classifier
	SpamCategory string

	Analyzer         *homograph.Analyzer
	FindingThreshold float64

	Reputation    Reputation
	MaxConcurrent int
	MaxLookups    int // hosts looked up per message, 0 means all

	Antivirus          plugins.VirusScanner
	AntivirusTimeout   time.Duration
	MaxAttachmentBytes int64

	Rules        []plugins.Evaluator
	RulesTimeout time.Duration

	Patterns []string

	Logger *zap.Logger
}

func (d *Deps) defaults() {
	if d.SpamCategory == "" {
		d.SpamCategory = "spam"
	}
	if d.FindingThreshold <= 0 {
		d.FindingThreshold = homograph.MediumRiskThreshold
	}
	if d.MaxConcurrent <= 0 {
		d.MaxConcurrent = 8
	}
	if d.Patterns == nil {
		d.Patterns = DefaultPatterns
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
}

// Default returns the full detector list in a fixed order
func Default(deps Deps) []Detector {
	deps.defaults()
	return []Detector{
		{Name: NameClassification, Run: Classification(deps.Classifier, deps.SpamCategory)},
		{Name: NamePhishing, Run: Phishing(deps)},
		{Name: NameIDNHomograph, Run: IDNHomograph(deps)},
		{Name: NameVirus, Run: Virus(deps.Antivirus, deps.AntivirusTimeout, deps.MaxAttachmentBytes, deps.Logger)},
		{Name: NameExecutable, Run: Executable},
		{Name: NameMacro, Run: Macro},
		{Name: NameArbitrary, Run: Arbitrary(deps.Rules, deps.RulesTimeout, deps.Logger)},
		{Name: NamePattern, Run: Patterns(deps.Patterns)},
	}
}

// Snapshot is the read-only view of one message shared by all detectors.
// Derived values are computed on first use and then reused.
type Snapshot struct {
	Message email.Message

	tokenize func(string) []string
	text     func() string
	content  func() string
	links    func() linkSet
	tokens   func() []string
	sender   func() string

	blockOnce sync.Once
	blocked   map[string]bool
}

// NewSnapshot wraps msg. tokenize may be nil, then no tokens are produced.
func NewSnapshot(msg email.Message, tokenize func(string) []string) *Snapshot {
	s := &Snapshot{Message: msg, tokenize: tokenize}

	s.text = sync.OnceValue(func() string {
		body := msg.Text
		if strings.TrimSpace(body) == "" && msg.HTML != "" {
			body = tokenizer.StripMarkup(msg.HTML)
		}
		return joinNonEmpty(msg.Subject, body)
	})
	s.content = sync.OnceValue(func() string {
		html := ""
		if msg.HTML != "" {
			html = tokenizer.StripMarkup(msg.HTML)
		}
		return joinNonEmpty(msg.Subject, msg.Text, html)
	})
	s.links = sync.OnceValue(func() linkSet {
		return extractLinks(msg.Text, msg.HTML)
	})
	s.tokens = sync.OnceValue(func() []string {
		if s.tokenize == nil {
			return nil
		}
		return s.tokenize(s.text())
	})
	s.sender = sync.OnceValue(func() string {
		return senderDomain(msg.From)
	})
	return s
}

// Text is the subject and body used for classification. HTML is only used
// when there is no plain text part.
func (s *Snapshot) Text() string { return s.text() }

// Content is every visible piece of text in the message
func (s *Snapshot) Content() string { return s.content() }

// Links returns the deduplicated, normalized URLs in source order
func (s *Snapshot) Links() []string {
	ls := s.links()
	out := make([]string, len(ls.links))
	for i, l := range ls.links {
		out[i] = l.URL
	}
	return out
}

// Anchors returns HTML links that carry visible text
func (s *Snapshot) Anchors() []Link { return s.links().anchors }

// LinkHosts returns the distinct hosts of all links in first-seen order
func (s *Snapshot) LinkHosts() []string { return s.links().hosts }

// firstLink returns the first link pointing at host
func (s *Snapshot) firstLink(host string) Link {
	for _, l := range s.links().links {
		if l.Host == host {
			return l
		}
	}
	return Link{Host: host}
}

// displayFor returns the visible text of the first anchor pointing at host
func (s *Snapshot) displayFor(host string) string {
	for _, a := range s.links().anchors {
		if a.Host == host {
			return a.Text
		}
	}
	return ""
}

// SenderDomain is the lower-cased domain of the From address
func (s *Snapshot) SenderDomain() string { return s.sender() }

// Tokens is the token sequence of Text
func (s *Snapshot) Tokens() []string { return s.tokens() }

// Blocked looks up link hosts and the sender domain once per snapshot. At
// most maxHosts hosts are queried when maxHosts is positive, the sender
// domain first. Concurrent callers wait for the first lookup round to finish.
func (s *Snapshot) Blocked(ctx context.Context, rep Reputation, limit, maxHosts int) map[string]bool {
	s.blockOnce.Do(func() {
		hosts := s.hosts()
		if maxHosts > 0 && len(hosts) > maxHosts {
			hosts = hosts[:maxHosts]
		}
		s.blocked = lookupBlocked(ctx, rep, hosts, limit)
	})
	return s.blocked
}

func (s *Snapshot) hosts() []string {
	var hosts []string
	d := s.SenderDomain()
	if d != "" {
		hosts = append(hosts, d)
	}
	for _, h := range s.LinkHosts() {
		if h != d {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// lookupBlocked queries rep for every host with at most limit lookups in flight
func lookupBlocked(ctx context.Context, rep Reputation, hosts []string, limit int) map[string]bool {
	blocked := make(map[string]bool)
	if rep == nil || len(hosts) == 0 {
		return blocked
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, host := range hosts {
		g.Go(func() error {
			if rep.IsBlocked(gctx, host) {
				mu.Lock()
				blocked[host] = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return blocked
}

// homographContext is the analyzer context for host. Phishing and IDN
// detectors build it the same way so they share cached reports.
func (s *Snapshot) homographContext(host string, blocked map[string]bool) homograph.Context {
	hctx := homograph.Context{
		DisplayText: s.displayFor(host),
		Content:     s.Content(),
	}
	if blocked[host] {
		hctx.SenderReputation = homograph.Reputation(0)
	}
	return hctx
}

func senderDomain(from string) string {
	at := strings.LastIndex(from, "@")
	if at < 0 {
		return ""
	}
	d := strings.Trim(from[at+1:], "<> \t")
	if i := strings.IndexAny(d, "> \t"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(strings.ToLower(d), ".")
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
