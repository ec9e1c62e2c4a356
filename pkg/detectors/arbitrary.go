package detectors

import (
	"context"
	"strings"
	"time"

	"github.com/zpam/spamscan/pkg/findings"
	"github.com/zpam/spamscan/pkg/plugins"
	"github.com/zpam/spamscan/pkg/task"
	"go.uber.org/zap"
)

// GTUBE is the generic test for unsolicited bulk email
const GTUBE = "XJS*C4JDBQADN1.NSBN3*2IDNEN*GTUBE-STANDARD-ANTI-UBE-TEST-EMAIL*C.34X"

// Arbitrary reports the GTUBE test string and matches of user rules. Each
// rule evaluator runs with its own timeout; a failing evaluator only loses
// its own matches.
func Arbitrary(rules []plugins.Evaluator, timeout time.Duration, logger *zap.Logger) Func {
	return func(ctx context.Context, s *Snapshot) ([]findings.Finding, error) {
		var out []findings.Finding
		if hasGTUBE(s) {
			f := findings.Arbitrary{Rule: "GTUBE", Detail: "GTUBE test string"}
			out = append(out, f)
			report(ctx, f)
		}

		for _, rule := range rules {
			outcome := task.Run(ctx, timeout, func(ctx context.Context) ([]plugins.Match, error) {
				return rule.Evaluate(ctx, &s.Message)
			})
			if !outcome.OK() {
				logger.Debug("rule evaluation failed",
					zap.String("rule", rule.Name()),
					zap.Stringer("state", outcome.State),
					zap.Error(outcome.Err))
				continue
			}
			for _, m := range outcome.Value {
				f := findings.Arbitrary{Rule: m.Rule, Detail: m.Detail}
				out = append(out, f)
				report(ctx, f)
			}
		}
		return out, nil
	}
}

func hasGTUBE(s *Snapshot) bool {
	for _, line := range s.Message.HeaderLines {
		if strings.Contains(line, GTUBE) {
			return true
		}
	}
	return strings.Contains(s.Message.AllText(), GTUBE)
}
