package detectors

import (
	"context"
	"time"

	"github.com/zpam/spamscan/pkg/findings"
	"github.com/zpam/spamscan/pkg/plugins"
	"github.com/zpam/spamscan/pkg/task"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentScans = 4

// Virus sends every attachment with content to the antivirus scanner. Each
// call has its own timeout; errors and timeouts count as clean. Infections
// are reported as they arrive so a slow sibling cannot hide them.
func Virus(scanner plugins.VirusScanner, timeout time.Duration, maxBytes int64, logger *zap.Logger) Func {
	return func(ctx context.Context, s *Snapshot) ([]findings.Finding, error) {
		if scanner == nil {
			return nil, nil
		}

		atts := s.Message.Attachments
		results := make([]findings.Finding, len(atts))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrentScans)
		for i, att := range atts {
			if len(att.Content) == 0 || (maxBytes > 0 && int64(len(att.Content)) > maxBytes) {
				continue
			}
			g.Go(func() error {
				out := task.Run(gctx, timeout, func(ctx context.Context) (plugins.VirusResult, error) {
					return scanner.Scan(ctx, att.Content)
				})
				if !out.OK() {
					logger.Debug("virus scan failed",
						zap.String("filename", att.Filename),
						zap.Stringer("state", out.State),
						zap.Error(out.Err))
					return nil
				}
				if out.Value.Infected {
					f := findings.Virus{Filename: att.Filename, Viruses: out.Value.Viruses}
					results[i] = f
					report(ctx, f)
				}
				return nil
			})
		}
		_ = g.Wait()

		var out []findings.Finding
		for _, f := range results {
			if f != nil {
				out = append(out, f)
			}
		}
		return out, nil
	}
}
