package plugins

import (
	"context"

	"github.com/zpam/spamscan/pkg/email"
)

// Match is one rule that fired on a message
type Match struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail,omitempty"`
}

// Evaluator runs user-defined rules against a message
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, msg *email.Message) ([]Match, error)
}

// VirusResult is the antivirus verdict for one buffer
type VirusResult struct {
	Infected bool     `json:"infected"`
	Viruses  []string `json:"viruses"`
}

// VirusScanner checks a byte buffer for malware
type VirusScanner interface {
	Scan(ctx context.Context, content []byte) (VirusResult, error)
}

// Rule defines a custom rule
type Rule struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Enabled     bool            `yaml:"enabled"`
	Conditions  []RuleCondition `yaml:"conditions"`
}

// RuleCondition defines a rule condition. All conditions of a rule must hold.
type RuleCondition struct {
	Type          string `yaml:"type"`     // subject, body, from, header, attachment
	Operator      string `yaml:"operator"` // contains, equals, regex, starts_with, ends_with, length_gt, length_lt
	Value         string `yaml:"value"`
	CaseSensitive bool   `yaml:"case_sensitive"`
}

var (
	_ Evaluator    = (*RuleSet)(nil)
	_ Evaluator    = (*LuaRule)(nil)
	_ VirusScanner = (*VirusTotalScanner)(nil)
)
