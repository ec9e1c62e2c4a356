package homograph

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Context is optional information about where the domain was seen
type Context struct {
	// DisplayText is the visible text of the link pointing at the domain
	DisplayText string
	// SenderReputation in [0,1], nil when unknown
	SenderReputation *float64
	// Content is the surrounding message text
	Content string
}

// Reputation returns a pointer suitable for Context.SenderReputation
func Reputation(v float64) *float64 {
	return &v
}

func (c Context) hash() string {
	h := sha256.New()
	h.Write([]byte(c.DisplayText))
	h.Write([]byte{0})
	if c.SenderReputation != nil {
		h.Write([]byte(strconv.FormatFloat(*c.SenderReputation, 'g', -1, 64)))
	}
	h.Write([]byte{0})
	h.Write([]byte(c.Content))
	return hex.EncodeToString(h.Sum(nil))
}

type urgencyPattern struct {
	name string
	re   *regexp.Regexp
}

var urgencyPatterns = []urgencyPattern{
	{"urgent", regexp.MustCompile(`(?i)\burgent(ly)?\b`)},
	{"immediate_action", regexp.MustCompile(`(?i)\bimmediate(ly)?\s+action\b|\bact\s+(now|immediately)\b`)},
	{"verify_account", regexp.MustCompile(`(?i)\bverify\s+(your\s+)?(account|identity|information|details)\b`)},
	{"account_suspended", regexp.MustCompile(`(?i)\baccount\s+(has\s+been\s+|will\s+be\s+)?(suspended|locked|disabled|closed|limited)\b`)},
	{"confirm_credentials", regexp.MustCompile(`(?i)\b(confirm|update)\s+(your\s+)?(password|payment|billing|credentials)\b`)},
	{"deadline", regexp.MustCompile(`(?i)\bwithin\s+(24|48|72)\s+hours\b`)},
	{"unusual_activity", regexp.MustCompile(`(?i)\bunusual\s+(sign-in\s+|login\s+)?activity\b`)},
	{"final_notice", regexp.MustCompile(`(?i)\bfinal\s+(notice|warning|reminder)\b`)},
}

// urgencyHits counts each pattern's occurrences in text
func urgencyHits(text string) map[string]int {
	if text == "" {
		return nil
	}
	hits := make(map[string]int)
	for _, p := range urgencyPatterns {
		if n := len(p.re.FindAllStringIndex(text, -1)); n > 0 {
			hits[p.name] = n
		}
	}
	return hits
}

var domainLike = regexp.MustCompile(`^(?i)[\p{L}\p{N}-]+(\.[\p{L}\p{N}-]+)+\.?$`)

// DisplayHost extracts a host from link text when the text looks like a
// URL or a bare domain
func DisplayHost(display string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(display))
	if s == "" {
		return "", false
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil || u.Hostname() == "" {
			return "", false
		}
		return u.Hostname(), true
	}
	host := s
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if !domainLike.MatchString(host) {
		return "", false
	}
	return strings.TrimSuffix(host, "."), true
}

func displayMismatch(display, domain string) bool {
	host, ok := DisplayHost(display)
	if !ok {
		return false
	}
	return strings.TrimPrefix(host, "www.") != strings.TrimPrefix(domain, "www.")
}
