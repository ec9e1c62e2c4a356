package findings

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Verdict is the outcome of one scan. It is built once and not modified
// afterwards.
type Verdict struct {
	IsSpam   bool
	Message  string
	Findings []Finding
	Links    []string
	Tokens   []string
}

// ByKind groups findings by category
func (v *Verdict) ByKind() map[Kind][]Finding {
	out := make(map[Kind][]Finding)
	for _, f := range v.Findings {
		out[f.Kind()] = append(out[f.Kind()], f)
	}
	return out
}

type verdictJSON struct {
	IsSpam   bool              `json:"is_spam"`
	Message  string            `json:"message"`
	Findings []json.RawMessage `json:"findings"`
	Links    []string          `json:"links"`
	Tokens   []string          `json:"tokens"`
}

// MarshalJSON writes the stable verdict record. Each finding is an object
// with "type" and "description" next to its own fields.
func (v *Verdict) MarshalJSON() ([]byte, error) {
	out := verdictJSON{
		IsSpam:   v.IsSpam,
		Message:  v.Message,
		Findings: make([]json.RawMessage, 0, len(v.Findings)),
		Links:    nonNil(v.Links),
		Tokens:   nonNil(v.Tokens),
	}
	for _, f := range v.Findings {
		raw, err := MarshalFinding(f)
		if err != nil {
			return nil, err
		}
		out.Findings = append(out.Findings, raw)
	}
	return json.Marshal(out)
}

// MarshalFinding encodes f with its type and description
func MarshalFinding(f Finding) ([]byte, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s finding: %w", f.Kind(), err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode %s finding: %w", f.Kind(), err)
	}

	typ, _ := json.Marshal(f.Kind())
	desc, _ := json.Marshal(f.Description())
	fields["type"] = typ
	fields["description"] = desc
	return json.Marshal(fields)
}

// Sort orders findings by kind, then description
func Sort(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		ri, rj := fs[i].Kind().Rank(), fs[j].Kind().Rank()
		if ri != rj {
			return ri < rj
		}
		return fs[i].Description() < fs[j].Description()
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
