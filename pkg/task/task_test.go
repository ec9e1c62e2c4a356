package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		fn      func(ctx context.Context) (int, error)
		state   State
		value   int
	}{
		{
			name:    "completes",
			timeout: time.Second,
			fn:      func(ctx context.Context) (int, error) { return 42, nil },
			state:   Done,
			value:   42,
		},
		{
			name:    "fails",
			timeout: time.Second,
			fn:      func(ctx context.Context) (int, error) { return 0, errors.New("boom") },
			state:   Failed,
		},
		{
			name:    "times out",
			timeout: 20 * time.Millisecond,
			fn: func(ctx context.Context) (int, error) {
				select {
				case <-time.After(2 * time.Second):
					return 1, nil
				case <-ctx.Done():
					return 0, ctx.Err()
				}
			},
			state: TimedOut,
		},
		{
			name:    "ignores deadline",
			timeout: 20 * time.Millisecond,
			fn: func(ctx context.Context) (int, error) {
				time.Sleep(200 * time.Millisecond)
				return 7, nil
			},
			state: TimedOut,
		},
		{
			name:    "panics",
			timeout: time.Second,
			fn:      func(ctx context.Context) (int, error) { panic("bad detector") },
			state:   Failed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Run(context.Background(), tt.timeout, tt.fn)
			assert.Equal(t, tt.state, out.State)
			assert.Equal(t, tt.value, out.Value)
			if tt.state != Done {
				assert.Error(t, out.Err)
				assert.False(t, out.OK())
			}
		})
	}
}

func TestRunParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := Run(ctx, time.Second, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	assert.Equal(t, Failed, out.State)
}

func TestResolve(t *testing.T) {
	miss := func() (string, bool) { return "", false }
	hit := func(v string) Step[string] { return func() (string, bool) { return v, true } }

	r := Resolve(hit("fr"), "en")
	assert.Equal(t, Resolved[string]{Value: "fr", Source: Primary}, r)

	r = Resolve(miss, "en", miss, hit("de"))
	assert.Equal(t, Resolved[string]{Value: "de", Source: Fallback}, r)

	r = Resolve(miss, "en", miss)
	assert.Equal(t, Resolved[string]{Value: "en", Source: Default}, r)

	r = Resolve[string](nil, "en")
	assert.Equal(t, Default, r.Source)
}
