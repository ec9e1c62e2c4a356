package detectors

import (
	"context"

	"github.com/zpam/spamscan/pkg/findings"
)

// IDNHomograph scores every link host and the sender domain with the
// homograph analyzer. Internationalized domains at or above the finding
// threshold are reported. Blocklisted hosts get a zero reputation.
func IDNHomograph(deps Deps) Func {
	return func(ctx context.Context, s *Snapshot) ([]findings.Finding, error) {
		if deps.Analyzer == nil {
			return nil, nil
		}
		hosts := s.hosts()
		if len(hosts) == 0 {
			return nil, nil
		}

		blocked := s.Blocked(ctx, deps.Reputation, deps.MaxConcurrent, deps.MaxLookups)

		var out []findings.Finding
		for _, host := range hosts {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			r := deps.Analyzer.Analyze(host, s.homographContext(host, blocked))
			if r.IsInternationalized && r.RiskScore >= deps.FindingThreshold {
				out = append(out, findings.IDNHomograph{Report: r})
			}
		}
		return out, nil
	}
}
