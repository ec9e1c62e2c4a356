package findings

import (
	"fmt"
	"strings"

	"github.com/zpam/spamscan/pkg/homograph"
)

// Kind identifies a finding category
type Kind string

const (
	KindClassification Kind = "classification"
	KindPhishing       Kind = "phishing"
	KindExecutable     Kind = "executable"
	KindMacro          Kind = "macro"
	KindArbitrary      Kind = "arbitrary"
	KindVirus          Kind = "virus"
	KindPattern        Kind = "pattern"
	KindIDNHomograph   Kind = "idn_homograph"
)

// Kinds lists every category in reporting order
var Kinds = []Kind{
	KindClassification,
	KindPhishing,
	KindIDNHomograph,
	KindVirus,
	KindExecutable,
	KindMacro,
	KindArbitrary,
	KindPattern,
}

var reasons = map[Kind]string{
	KindClassification: "classified as spam",
	KindPhishing:       "phishing links",
	KindIDNHomograph:   "look-alike domains",
	KindVirus:          "infected attachments",
	KindExecutable:     "executable attachments",
	KindMacro:          "macro-enabled attachments",
	KindArbitrary:      "matched content rules",
	KindPattern:        "sensitive data patterns",
}

// Reason is the phrase used in the verdict message
func (k Kind) Reason() string {
	if r, ok := reasons[k]; ok {
		return r
	}
	return string(k)
}

// Rank is the position of k in Kinds
func (k Kind) Rank() int {
	for i, kk := range Kinds {
		if kk == k {
			return i
		}
	}
	return len(Kinds)
}

// Severity grades pattern findings
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Finding is one observation made by a detector. The set of implementations
// is closed to this package.
type Finding interface {
	Kind() Kind
	Description() string
	finding()
}

// Classification is the statistical classifier's label
type Classification struct {
	Category    string  `json:"category"`
	Probability float64 `json:"probability"`
}

func (Classification) Kind() Kind { return KindClassification }
func (c Classification) Description() string {
	return fmt.Sprintf("classifier labelled the message %q (p=%.2f)", c.Category, c.Probability)
}
func (Classification) finding() {}

// Phishing is a link judged to lead somewhere other than it claims
type Phishing struct {
	URL    string `json:"url"`
	Host   string `json:"host"`
	Reason string `json:"reason"`
}

func (Phishing) Kind() Kind { return KindPhishing }
func (p Phishing) Description() string {
	return fmt.Sprintf("suspicious link to %s: %s", p.Host, p.Reason)
}
func (Phishing) finding() {}

// Executable is an attachment carrying runnable code
type Executable struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
}

func (Executable) Kind() Kind { return KindExecutable }
func (e Executable) Description() string {
	return fmt.Sprintf("attachment %q is an executable (%s)", e.Filename, e.Format)
}
func (Executable) finding() {}

// Macro is an office document with embedded macros
type Macro struct {
	Filename  string `json:"filename"`
	Indicator string `json:"indicator"`
}

func (Macro) Kind() Kind { return KindMacro }
func (m Macro) Description() string {
	return fmt.Sprintf("attachment %q contains macros (%s)", m.Filename, m.Indicator)
}
func (Macro) finding() {}

// Arbitrary is a match of a content rule
type Arbitrary struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail,omitempty"`
}

func (Arbitrary) Kind() Kind { return KindArbitrary }
func (a Arbitrary) Description() string {
	if a.Detail == "" {
		return fmt.Sprintf("matched rule %s", a.Rule)
	}
	return fmt.Sprintf("matched rule %s: %s", a.Rule, a.Detail)
}
func (Arbitrary) finding() {}

// Virus is an attachment reported by the antivirus collaborator
type Virus struct {
	Filename string   `json:"filename"`
	Viruses  []string `json:"viruses"`
}

func (Virus) Kind() Kind { return KindVirus }
func (v Virus) Description() string {
	return fmt.Sprintf("attachment %q is infected: %s", v.Filename, strings.Join(v.Viruses, ", "))
}
func (Virus) finding() {}

// Pattern is sensitive or suspicious data found in the text
type Pattern struct {
	Name     string   `json:"name"`
	Match    string   `json:"match"`
	Severity Severity `json:"severity"`
}

func (Pattern) Kind() Kind { return KindPattern }
func (p Pattern) Description() string {
	return fmt.Sprintf("%s pattern found (%s severity)", p.Name, p.Severity)
}
func (Pattern) finding() {}

// IDNHomograph is a domain that imitates another
type IDNHomograph struct {
	Report homograph.Report `json:"report"`
}

func (IDNHomograph) Kind() Kind { return KindIDNHomograph }
func (h IDNHomograph) Description() string {
	return fmt.Sprintf("domain %s looks like an impersonation (risk %.2f)", h.Report.Domain, h.Report.RiskScore)
}
func (IDNHomograph) finding() {}
