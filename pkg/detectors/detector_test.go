package detectors

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/findings"
	"github.com/zpam/spamscan/pkg/homograph"
	"github.com/zpam/spamscan/pkg/plugins"
)

type fakeClassifier struct {
	category string
	p        float64
}

func (f fakeClassifier) Categorize(text string) (string, float64) {
	return f.category, f.p
}

type fakeReputation struct {
	blocked map[string]bool
	calls   atomic.Int64
}

func (f *fakeReputation) IsBlocked(ctx context.Context, host string) bool {
	f.calls.Add(1)
	return f.blocked[host]
}

type fakeEvaluator struct {
	name    string
	matches []plugins.Match
	err     error
	delay   time.Duration
}

func (f fakeEvaluator) Name() string { return f.name }

func (f fakeEvaluator) Evaluate(ctx context.Context, msg *email.Message) ([]plugins.Match, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.matches, f.err
}

func kindsOf(fs []findings.Finding) []findings.Kind {
	var out []findings.Kind
	for _, f := range fs {
		out = append(out, f.Kind())
	}
	return out
}

func TestDefaultDetectorList(t *testing.T) {
	list := Default(Deps{})
	var names []string
	for _, d := range list {
		require.NotNil(t, d.Run, d.Name)
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		NameClassification, NamePhishing, NameIDNHomograph, NameVirus,
		NameExecutable, NameMacro, NameArbitrary, NamePattern,
	}, names)

	// Nothing configured and nothing in the message: no findings from anyone
	s := NewSnapshot(email.Message{Text: "hello there"}, nil)
	for _, d := range list {
		fs, err := d.Run(context.Background(), s)
		require.NoError(t, err, d.Name)
		assert.Empty(t, fs, d.Name)
	}
}

func TestSnapshotDerivedValues(t *testing.T) {
	msg := email.Message{
		From:    "Alice <alice@Example.ORG>",
		Subject: "Hi",
		Text:    "See HTTP://Example.COM:80/ and http://example.com/#top, then www.shop.test/path.",
		HTML:    `<p>Login at <a href="http://evil.test/login">https://www.paypal.com</a></p>`,
	}

	var calls atomic.Int64
	s := NewSnapshot(msg, func(text string) []string {
		calls.Add(1)
		return strings.Fields(strings.ToLower(text))
	})

	assert.Equal(t, []string{
		"http://example.com",
		"http://www.shop.test/path",
		"http://evil.test/login",
		"https://www.paypal.com",
	}, s.Links())
	assert.Equal(t, []string{"example.com", "www.shop.test", "evil.test", "www.paypal.com"}, s.LinkHosts())
	require.Len(t, s.Anchors(), 1)
	assert.Equal(t, "https://www.paypal.com", s.Anchors()[0].Text)
	assert.Equal(t, "example.org", s.SenderDomain())

	assert.Equal(t, "Hi\n"+msg.Text, s.Text())
	assert.Contains(t, s.Content(), "Login at")

	tokens := s.Tokens()
	assert.Equal(t, tokens, s.Tokens())
	assert.Equal(t, "hi", tokens[0])
	assert.Equal(t, int64(1), calls.Load())
}

func TestSnapshotTextFallsBackToHTML(t *testing.T) {
	s := NewSnapshot(email.Message{HTML: "<b>Only</b> markup"}, nil)
	assert.Equal(t, "Only markup", s.Text())
	assert.Nil(t, s.Tokens())
}

func TestSnapshotBlockedLooksUpOnce(t *testing.T) {
	rep := &fakeReputation{blocked: map[string]bool{"evil.test": true}}
	s := NewSnapshot(email.Message{
		From: "x@sender.test",
		Text: "http://evil.test/a http://good.test/b http://evil.test/c",
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			blocked := s.Blocked(context.Background(), rep, 2, 0)
			assert.True(t, blocked["evil.test"])
			assert.False(t, blocked["good.test"])
		}()
	}
	wg.Wait()

	// evil.test, good.test and the sender domain
	assert.Equal(t, int64(3), rep.calls.Load())
}

func TestSnapshotBlockedCapsLookups(t *testing.T) {
	tests := []struct {
		name      string
		maxHosts  int
		wantCalls int64
		wantEvil  bool
	}{
		{"no cap", 0, 3, true},
		{"cap keeps sender first", 2, 2, true},
		{"cap of one only checks sender", 1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &fakeReputation{blocked: map[string]bool{"evil.test": true}}
			s := NewSnapshot(email.Message{
				From: "x@sender.test",
				Text: "http://evil.test/a http://good.test/b",
			}, nil)

			blocked := s.Blocked(context.Background(), rep, 2, tt.maxHosts)
			assert.Equal(t, tt.wantEvil, blocked["evil.test"])
			assert.Equal(t, tt.wantCalls, rep.calls.Load())
		})
	}
}

func TestClassificationDetector(t *testing.T) {
	s := NewSnapshot(email.Message{Text: "win money"}, nil)

	tests := []struct {
		name       string
		classifier fakeClassifier
		want       int
	}{
		{"spam", fakeClassifier{"spam", 0.97}, 1},
		{"ham", fakeClassifier{"ham", 0.88}, 0},
		{"empty model", fakeClassifier{"", 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := Classification(tt.classifier, "spam")(context.Background(), s)
			require.NoError(t, err)
			assert.Len(t, fs, tt.want)
		})
	}

	fs, err := Classification(nil, "spam")(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, fs)

	fs, _ = Classification(fakeClassifier{"spam", 0.9}, "spam")(context.Background(), NewSnapshot(email.Message{}, nil))
	assert.Empty(t, fs, "nothing to classify")
}

func phishingReasons(fs []findings.Finding) map[string]string {
	out := make(map[string]string)
	for _, f := range fs {
		p := f.(findings.Phishing)
		out[p.Host] = p.Reason
	}
	return out
}

func TestPhishingDetector(t *testing.T) {
	deps := Deps{
		Analyzer:   homograph.New(homograph.Options{}),
		Reputation: &fakeReputation{blocked: map[string]bool{"blocked.test": true}},
	}
	deps.defaults()
	run := Phishing(deps)

	tests := []struct {
		name   string
		msg    email.Message
		host   string
		reason string
	}{
		{"blocklisted host", email.Message{Text: "go to http://blocked.test/x"}, "blocked.test", "host is on the DNS blocklist"},
		{"raw ip", email.Message{Text: "http://192.168.10.20/login"}, "192.168.10.20", "link points at a raw IP address"},
		{"userinfo", email.Message{Text: "http://paypal.com@evil.test/"}, "evil.test", "credentials in the URL hide the real host"},
		{"anchor mismatch", email.Message{HTML: `<a href="http://evil.test/login">www.mybank.example</a>`}, "evil.test", "link text shows www.mybank.example"},
		{"brand look-alike", email.Message{Text: "http://paypal-secure.com/login"}, "paypal-secure.com", "domain imitates paypal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := run(context.Background(), NewSnapshot(tt.msg, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.reason, phishingReasons(fs)[tt.host], fs)
		})
	}

	clean := email.Message{
		Text: "docs at https://www.paypal.com/help and https://example.com",
		HTML: `<a href="https://example.com/a">example.com</a>`,
	}
	fs, err := run(context.Background(), NewSnapshot(clean, nil))
	require.NoError(t, err)
	assert.Empty(t, fs)
}

func TestIDNHomographDetector(t *testing.T) {
	deps := Deps{Analyzer: homograph.New(homograph.Options{Brands: []string{"apple"}})}
	deps.defaults()
	run := IDNHomograph(deps)

	fs, err := run(context.Background(), NewSnapshot(email.Message{
		From: "support@xn--80ak6aa92e.com",
		Text: "visit http://xn--80ak6aa92e.com/ or https://example.com",
	}, nil))
	require.NoError(t, err)
	require.Len(t, fs, 1, "link host and sender share one domain")

	r := fs[0].(findings.IDNHomograph).Report
	assert.Equal(t, "xn--80ak6aa92e.com", r.Domain)
	assert.Greater(t, r.RiskScore, 0.6)
	assert.Contains(t, r.RiskFactors, "brand:apple")

	fs, err = run(context.Background(), NewSnapshot(email.Message{Text: "https://münchen.de/rathaus"}, nil))
	require.NoError(t, err)
	assert.Empty(t, fs, "whitelisted IDN")

	fs, err = IDNHomograph(Deps{})(context.Background(), NewSnapshot(email.Message{Text: "http://xn--80ak6aa92e.com"}, nil))
	require.NoError(t, err)
	assert.Empty(t, fs)
}

func TestArbitraryDetector(t *testing.T) {
	ctx := context.Background()

	t.Run("GTUBE in a header line", func(t *testing.T) {
		s := NewSnapshot(email.Message{HeaderLines: []string{"X-Test: " + GTUBE}}, nil)
		fs, err := Arbitrary(nil, time.Second, nil)(ctx, s)
		require.NoError(t, err)
		require.Len(t, fs, 1)
		assert.Equal(t, "GTUBE", fs[0].(findings.Arbitrary).Rule)
	})

	t.Run("GTUBE in the body", func(t *testing.T) {
		s := NewSnapshot(email.Message{Text: "test\n" + GTUBE + "\n"}, nil)
		fs, _ := Arbitrary(nil, time.Second, nil)(ctx, s)
		assert.Len(t, fs, 1)
	})

	t.Run("rules with failures", func(t *testing.T) {
		rules := []plugins.Evaluator{
			fakeEvaluator{name: "ok", matches: []plugins.Match{{Rule: "lottery", Detail: "lottery subject"}}},
			fakeEvaluator{name: "broken", err: errors.New("boom")},
			fakeEvaluator{name: "slow", delay: time.Second, matches: []plugins.Match{{Rule: "never"}}},
		}
		s := NewSnapshot(email.Message{Subject: "lottery"}, nil)
		fs, err := Arbitrary(rules, 20*time.Millisecond, nopLogger())(ctx, s)
		require.NoError(t, err)
		require.Len(t, fs, 1)
		assert.Equal(t, findings.Arbitrary{Rule: "lottery", Detail: "lottery subject"}, fs[0])
	})
}
