package detectors

import (
	"context"
	"regexp"
	"strings"

	"github.com/zpam/spamscan/pkg/findings"
)

// Pattern names
const (
	PatternCreditCard = "credit_card"
	PatternMACAddress = "mac_address"
	PatternFilePath   = "file_path"
	PatternHexColor   = "hex_color"
	PatternDate       = "date"
)

// DefaultPatterns are the patterns enabled when none are configured
var DefaultPatterns = []string{PatternCreditCard, PatternMACAddress, PatternFilePath}

// maxMatchesPerPattern caps repeated findings of one pattern in one message
const maxMatchesPerPattern = 10

type pattern struct {
	re       *regexp.Regexp
	severity findings.Severity
	// accept validates and formats a raw match, nil accepts it as is
	accept func(string) (string, bool)
}

var patterns = map[string]pattern{
	PatternCreditCard: {
		re:       regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`),
		severity: findings.SeverityHigh,
		accept:   acceptCard,
	},
	PatternMACAddress: {
		re:       regexp.MustCompile(`\b[0-9A-Fa-f]{2}(?:[:-][0-9A-Fa-f]{2}){5}\b`),
		severity: findings.SeverityMedium,
	},
	PatternFilePath: {
		re:       regexp.MustCompile(`(?:\b[A-Za-z]:\\[^\s"'<>|*?]+|(?:^|\s)/(?:[\w.-]+/)+[\w.-]+)`),
		severity: findings.SeverityLow,
		accept: func(m string) (string, bool) {
			return strings.TrimSpace(m), true
		},
	},
	PatternHexColor: {
		re:       regexp.MustCompile(`#(?:[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})\b`),
		severity: findings.SeverityLow,
	},
	PatternDate: {
		re:       regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})\b`),
		severity: findings.SeverityLow,
	},
}

// PatternNames lists every known pattern
func PatternNames() []string {
	return []string{PatternCreditCard, PatternMACAddress, PatternFilePath, PatternHexColor, PatternDate}
}

// IsPattern reports whether name is a known pattern
func IsPattern(name string) bool {
	_, ok := patterns[name]
	return ok
}

// Patterns runs the enabled single-pattern detectors over the message text.
// Unknown names are ignored.
func Patterns(enabled []string) Func {
	return func(ctx context.Context, s *Snapshot) ([]findings.Finding, error) {
		text := s.Content()
		if text == "" {
			return nil, nil
		}

		var out []findings.Finding
		for _, name := range enabled {
			p, ok := patterns[name]
			if !ok {
				continue
			}
			seen := make(map[string]bool)
			for _, raw := range p.re.FindAllString(text, -1) {
				match, ok := raw, true
				if p.accept != nil {
					match, ok = p.accept(raw)
				}
				if !ok || seen[match] {
					continue
				}
				seen[match] = true
				out = append(out, findings.Pattern{Name: name, Match: match, Severity: p.severity})
				if len(seen) >= maxMatchesPerPattern {
					break
				}
			}
		}
		return out, nil
	}
}

// acceptCard keeps Luhn-valid numbers and masks all but the last four digits
func acceptCard(raw string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) < 13 || len(digits) > 19 || !luhn(digits) {
		return "", false
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:], true
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
