package detectors

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/findings"
)

func TestPatternsDetector(t *testing.T) {
	tests := []struct {
		name    string
		enabled []string
		text    string
		want    []findings.Pattern
	}{
		{"credit card", nil, "card 4111 1111 1111 1111 exp 12/29",
			[]findings.Pattern{{Name: PatternCreditCard, Match: "************1111", Severity: findings.SeverityHigh}}},
		{"luhn invalid", nil, "order 4111 1111 1111 1112", nil},
		{"mac address", nil, "device 00:1A:2B:3C:4D:5E connected",
			[]findings.Pattern{{Name: PatternMACAddress, Match: "00:1A:2B:3C:4D:5E", Severity: findings.SeverityMedium}}},
		{"windows path", nil, `run C:\Windows\system32\cmd.exe now`,
			[]findings.Pattern{{Name: PatternFilePath, Match: `C:\Windows\system32\cmd.exe`, Severity: findings.SeverityLow}}},
		{"unix path", nil, "read /etc/passwd please",
			[]findings.Pattern{{Name: PatternFilePath, Match: "/etc/passwd", Severity: findings.SeverityLow}}},
		{"url is not a path", nil, "see https://example.com/a/b", nil},
		{"hex color off by default", nil, "color #ff0000", nil},
		{"hex color and date enabled", []string{PatternHexColor, PatternDate, "bogus"}, "on 2024-01-15 use #ff0000",
			[]findings.Pattern{
				{Name: PatternHexColor, Match: "#ff0000", Severity: findings.SeverityLow},
				{Name: PatternDate, Match: "2024-01-15", Severity: findings.SeverityLow},
			}},
		{"duplicates collapse", nil, "00:1A:2B:3C:4D:5E and 00:1A:2B:3C:4D:5E",
			[]findings.Pattern{{Name: PatternMACAddress, Match: "00:1A:2B:3C:4D:5E", Severity: findings.SeverityMedium}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := tt.enabled
			if enabled == nil {
				enabled = DefaultPatterns
			}
			fs, err := Patterns(enabled)(context.Background(), NewSnapshot(email.Message{Text: tt.text}, nil))
			require.NoError(t, err)

			var got []findings.Pattern
			for _, f := range fs {
				got = append(got, f.(findings.Pattern))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPatternsCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("00:1A:2B:3C:4D:")
		sb.WriteString(strings.ToUpper(string("0123456789abcdef"[i%16])))
		sb.WriteString(string("0123456789ABCDEF"[i/16]))
		sb.WriteString(" ")
	}
	fs, err := Patterns([]string{PatternMACAddress})(context.Background(), NewSnapshot(email.Message{Text: sb.String()}, nil))
	require.NoError(t, err)
	assert.Len(t, fs, maxMatchesPerPattern)
}

func TestLuhn(t *testing.T) {
	assert.True(t, luhn("4111111111111111"))
	assert.True(t, luhn("79927398713"))
	assert.False(t, luhn("79927398710"))
	assert.True(t, IsPattern(PatternDate))
	assert.False(t, IsPattern("ssn"))
	assert.Len(t, PatternNames(), 5)
}
