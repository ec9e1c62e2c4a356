package plugins

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/tokenizer"
	"gopkg.in/yaml.v3"
)

// RulesFile is the structure of the custom rules YAML file
type RulesFile struct {
	Settings struct {
		Enabled          bool `yaml:"enabled"`
		CaseSensitive    bool `yaml:"case_sensitive"`
		MaxRulesPerEmail int  `yaml:"max_rules_per_email"`
	} `yaml:"settings"`
	Rules              []Rule   `yaml:"rules"`
	WhitelistedDomains []string `yaml:"whitelisted_domains"`
}

// compiledCondition is a condition with its pattern prepared
type compiledCondition struct {
	RuleCondition
	header    string
	value     string
	re        *regexp.Regexp
	threshold int
	fold      bool
}

type compiledRule struct {
	Rule
	conditions []compiledCondition
}

// RuleSet evaluates rules loaded from YAML. It is immutable after loading.
type RuleSet struct {
	name      string
	rules     []compiledRule
	whitelist map[string]bool
	maxRules  int
}

// LoadRuleFile reads and compiles a rules file
func LoadRuleFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	rs, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	rs.name = path
	return rs, nil
}

// ParseRules compiles rules from YAML
func ParseRules(data []byte) (*RuleSet, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	rs := &RuleSet{
		name:      "custom_rules",
		whitelist: make(map[string]bool),
		maxRules:  file.Settings.MaxRulesPerEmail,
	}
	for _, d := range file.WhitelistedDomains {
		rs.whitelist[strings.ToLower(d)] = true
	}
	if !file.Settings.Enabled {
		return rs, nil
	}

	for _, rule := range file.Rules {
		if !rule.Enabled {
			continue
		}
		if len(rule.Conditions) == 0 {
			return nil, fmt.Errorf("rule %s has no conditions", rule.ID)
		}
		cr := compiledRule{Rule: rule}
		for _, cond := range rule.Conditions {
			cc, err := compileCondition(cond, !cond.CaseSensitive && !file.Settings.CaseSensitive)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
			}
			cr.conditions = append(cr.conditions, cc)
		}
		rs.rules = append(rs.rules, cr)
	}
	return rs, nil
}

func compileCondition(cond RuleCondition, fold bool) (compiledCondition, error) {
	cc := compiledCondition{RuleCondition: cond, value: cond.Value, fold: fold}

	switch strings.ToLower(cond.Type) {
	case "subject", "body", "from", "attachment":
	case "header":
		// "HeaderName:pattern"
		parts := strings.SplitN(cond.Value, ":", 2)
		if len(parts) != 2 {
			return cc, fmt.Errorf("header condition must be in format 'HeaderName:pattern'")
		}
		cc.header = strings.ToLower(strings.TrimSpace(parts[0]))
		cc.value = parts[1]
	default:
		return cc, fmt.Errorf("unknown condition type: %s", cond.Type)
	}

	switch strings.ToLower(cond.Operator) {
	case "contains", "equals", "starts_with", "ends_with":
		if fold {
			cc.value = strings.ToLower(cc.value)
		}
	case "matches", "regex":
		pattern := cc.value
		if fold {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return cc, fmt.Errorf("invalid regex pattern '%s': %w", cc.value, err)
		}
		cc.re = re
	case "length_gt", "length_lt":
		n, err := strconv.Atoi(cc.value)
		if err != nil {
			return cc, fmt.Errorf("%s requires numeric value: %w", cond.Operator, err)
		}
		cc.threshold = n
	default:
		return cc, fmt.Errorf("unknown operator: %s", cond.Operator)
	}
	return cc, nil
}

// Name returns the rule set name
func (rs *RuleSet) Name() string {
	return rs.name
}

// Len returns the number of active rules
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Evaluate returns the rules that match msg
func (rs *RuleSet) Evaluate(ctx context.Context, msg *email.Message) ([]Match, error) {
	if rs.isDomainWhitelisted(msg.From) {
		return nil, nil
	}

	var matches []Match
	for _, rule := range rs.rules {
		if err := ctx.Err(); err != nil {
			return matches, err
		}
		if rs.maxRules > 0 && len(matches) >= rs.maxRules {
			break
		}
		if rule.matches(msg) {
			matches = append(matches, Match{Rule: rule.ID, Detail: rule.Description})
		}
	}
	return matches, nil
}

func (rs *RuleSet) isDomainWhitelisted(from string) bool {
	at := strings.LastIndex(from, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(strings.Trim(from[at+1:], "<> "))
	return rs.whitelist[domain]
}

func (r compiledRule) matches(msg *email.Message) bool {
	for _, cond := range r.conditions {
		if !cond.matches(msg) {
			return false
		}
	}
	return true
}

func (c compiledCondition) matches(msg *email.Message) bool {
	switch strings.ToLower(c.Type) {
	case "subject":
		return c.test(msg.Subject)
	case "body":
		return c.test(bodyText(msg))
	case "from":
		return c.test(msg.From)
	case "attachment":
		names := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			names = append(names, att.Filename)
		}
		return c.test(strings.Join(names, " "))
	case "header":
		for _, line := range msg.HeaderLines {
			name, value, ok := strings.Cut(line, ":")
			if ok && strings.ToLower(strings.TrimSpace(name)) == c.header && c.test(strings.TrimSpace(value)) {
				return true
			}
		}
	}
	return false
}

// bodyText is the plain text part, or the stripped HTML part when the message
// has no text
func bodyText(msg *email.Message) string {
	if strings.TrimSpace(msg.Text) == "" && msg.HTML != "" {
		return tokenizer.StripMarkup(msg.HTML)
	}
	return msg.Text
}

func (c compiledCondition) test(text string) bool {
	search := text
	if c.fold {
		search = strings.ToLower(text)
	}

	switch strings.ToLower(c.Operator) {
	case "contains":
		return strings.Contains(search, c.value)
	case "equals":
		return search == c.value
	case "matches", "regex":
		return c.re.MatchString(text)
	case "starts_with":
		return strings.HasPrefix(search, c.value)
	case "ends_with":
		return strings.HasSuffix(search, c.value)
	case "length_gt":
		return len(text) > c.threshold
	case "length_lt":
		return len(text) < c.threshold
	}
	return false
}

// DefaultRules is a starter rules file written by "config generate"
const DefaultRules = `# spamscan custom rules
settings:
  enabled: true
  case_sensitive: false
  max_rules_per_email: 50

rules:
  - id: congratulations_spam
    name: Congratulations Spam
    description: congratulations-based scam subject
    enabled: true
    conditions:
      - type: subject
        operator: contains
        value: congratulations

  - id: urgent_action
    name: Urgent Action
    description: urgent action pressure in subject
    enabled: true
    conditions:
      - type: subject
        operator: regex
        value: (urgent|act now|limited time)

whitelisted_domains: []
`
