package detectors

import (
	"context"
	"sync"

	"github.com/zpam/spamscan/pkg/findings"
)

type partialKey struct{}

// Partial holds findings a detector confirmed before it returned. When the
// detector runs out of time the runner keeps these instead of nothing.
type Partial struct {
	mu    sync.Mutex
	found []findings.Finding
}

// WithPartial attaches p to ctx so detectors can report into it
func WithPartial(ctx context.Context, p *Partial) context.Context {
	return context.WithValue(ctx, partialKey{}, p)
}

// Findings returns a copy of what was reported so far
func (p *Partial) Findings() []findings.Finding {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]findings.Finding(nil), p.found...)
}

// report records fs in the Partial carried by ctx, if any
func report(ctx context.Context, fs ...findings.Finding) {
	p, ok := ctx.Value(partialKey{}).(*Partial)
	if !ok || len(fs) == 0 {
		return
	}
	p.mu.Lock()
	p.found = append(p.found, fs...)
	p.mu.Unlock()
}
