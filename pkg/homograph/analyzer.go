package homograph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const DefaultBrandThreshold = 0.8

// Options configures an Analyzer
type Options struct {
	// BrandThreshold is the similarity a brand match must exceed
	BrandThreshold float64
	// Brands and Whitelist extend the built-in lists
	Brands    []string
	Whitelist []string
	Logger    *zap.Logger
}

// CacheStats tracks report cache performance
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int64 `json:"entries"`
}

// HitRate returns the cache hit rate as a percentage
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Analyzer scores domains for impersonation risk. Reports are memoized per
// domain and context for the life of the analyzer.
type Analyzer struct {
	threshold float64
	brands    []string
	whitelist map[string]bool
	logger    *zap.Logger

	mu    sync.RWMutex
	cache map[string]Report
	stats CacheStats
}

// New creates an analyzer
func New(opts Options) *Analyzer {
	if opts.BrandThreshold <= 0 || opts.BrandThreshold >= 1 {
		opts.BrandThreshold = DefaultBrandThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	brands := make([]string, 0, len(DefaultBrands)+len(opts.Brands))
	seen := make(map[string]bool)
	for _, b := range append(append([]string(nil), DefaultBrands...), opts.Brands...) {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		brands = append(brands, b)
	}

	whitelist := make(map[string]bool)
	for _, d := range append(append([]string(nil), DefaultWhitelist...), opts.Whitelist...) {
		d = normalizeDomain(d)
		whitelist[d] = true
		if u, err := toUnicode(d); err == nil {
			whitelist[u] = true
		}
	}

	return &Analyzer{
		threshold: opts.BrandThreshold,
		brands:    brands,
		whitelist: whitelist,
		logger:    logger,
		cache:     make(map[string]Report),
	}
}

func normalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// Analyze returns the risk report for domain seen in ctx
func (a *Analyzer) Analyze(domain string, ctx Context) Report {
	domain = normalizeDomain(domain)
	key := domain + "|" + ctx.hash()

	a.mu.RLock()
	cached, ok := a.cache[key]
	a.mu.RUnlock()
	if ok {
		a.mu.Lock()
		a.stats.Hits++
		a.mu.Unlock()
		return cached.clone()
	}

	report := a.analyze(domain, ctx)

	a.mu.Lock()
	a.stats.Misses++
	if _, exists := a.cache[key]; !exists {
		a.cache[key] = report
	}
	a.stats.Entries = int64(len(a.cache))
	a.mu.Unlock()

	return report.clone()
}

// Stats returns cache statistics
func (a *Analyzer) Stats() CacheStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

func (a *Analyzer) isWhitelisted(domain, decoded string) bool {
	return a.whitelist[domain] || a.whitelist[decoded]
}

func (a *Analyzer) analyze(domain string, ctx Context) Report {
	punycode := hasPunycode(domain)
	decoded, decodeErr := domain, error(nil)
	if punycode {
		decoded, decodeErr = toUnicode(domain)
	}
	idn := punycode || !isPrintableASCII(domain)

	if a.isWhitelisted(domain, decoded) {
		r := Report{
			Domain:              domain,
			Confidence:          1,
			IsInternationalized: idn,
			RiskFactors:         []string{},
		}
		r.Recommendations = recommendations(r)
		return r
	}

	var score float64
	factors := make(map[string]bool)

	if idn {
		score += 0.3
		factors["internationalized"] = true
	}

	conf := analyzeConfusables(domain)
	score += conf.score
	for _, s := range conf.substitutions {
		factors["confusable:"+s.String()] = true
	}

	brands := matchBrands(domain, decoded, a.brands, a.threshold)
	for _, m := range brands {
		score += m.Similarity * 0.7
		factors["brand:"+m.Brand] = true
	}

	if add, factor := mixingScore(scriptsIn(decoded)); add > 0 {
		score += add
		factors[factor] = true
	}

	if ctx.DisplayText != "" && displayMismatch(ctx.DisplayText, domain) && displayMismatch(ctx.DisplayText, decoded) {
		score += 0.3
		factors["display_mismatch"] = true
	}
	if ctx.SenderReputation != nil && *ctx.SenderReputation < 0.5 {
		score += 0.2
		factors["low_sender_reputation"] = true
	}
	for name, n := range urgencyHits(ctx.Content) {
		score += 0.1 * float64(n)
		factors["urgency:"+name] = true
	}

	if punycode {
		if decodeErr != nil {
			score += 0.2
			factors["punycode_decode_failed"] = true
			a.logger.Debug("punycode decode failed", zap.String("domain", domain), zap.Error(decodeErr))
		} else {
			dc := analyzeConfusables(decoded)
			score += dc.score * 0.8
			for _, s := range dc.substitutions {
				factors["confusable:"+s.String()] = true
			}
		}
	}

	score = clamp(score)
	r := Report{
		Domain:              domain,
		RiskScore:           score,
		Confidence:          min(score, 1),
		IsInternationalized: idn,
		RiskFactors:         sortedKeys(factors),
		Brands:              brands,
	}
	r.Recommendations = recommendations(r)

	if r.RiskScore >= MediumRiskThreshold {
		a.logger.Debug("risky domain",
			zap.String("domain", domain),
			zap.Float64("score", r.RiskScore),
			zap.Strings("factors", r.RiskFactors))
	}
	return r
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func clamp(v float64) float64 {
	return max(0, min(v, 1))
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// String formats the report for logs and the CLI
func (r Report) String() string {
	return fmt.Sprintf("%s score=%.2f level=%s factors=%v", r.Domain, r.RiskScore, r.Level(), r.RiskFactors)
}
