package detectors

import (
	"context"

	"github.com/zpam/spamscan/pkg/findings"
	"github.com/zpam/spamscan/pkg/learning"
)

// Classification labels the message text with the statistical classifier.
// Only a spam label is reported.
func Classification(classifier learning.Classifier, spamCategory string) Func {
	return func(ctx context.Context, s *Snapshot) ([]findings.Finding, error) {
		if classifier == nil {
			return nil, nil
		}
		text := s.Text()
		if text == "" {
			return nil, nil
		}

		category, p := classifier.Categorize(text)
		if category != spamCategory {
			return nil, nil
		}
		return []findings.Finding{findings.Classification{Category: category, Probability: p}}, nil
	}
}
