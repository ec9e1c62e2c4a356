package filter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/detectors"
	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/findings"
	"github.com/zpam/spamscan/pkg/homograph"
	"github.com/zpam/spamscan/pkg/plugins"
	"github.com/zpam/spamscan/pkg/profiler"
)

type fakeClassifier struct {
	category string
	p        float64
}

func (f fakeClassifier) Categorize(text string) (string, float64) {
	return f.category, f.p
}

type fakeEvaluator struct {
	matches []plugins.Match
}

func (fakeEvaluator) Name() string { return "fake" }

func (f fakeEvaluator) Evaluate(ctx context.Context, msg *email.Message) ([]plugins.Match, error) {
	return f.matches, nil
}

// testConfig switches off everything that would reach the network
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Reputation.Enabled = false
	cfg.Classifier.Enabled = false
	cfg.Antivirus.Enabled = false
	return cfg
}

func newTestScanner(t *testing.T, cfg *config.Config, opts ...Option) *Scanner {
	t.Helper()
	s, err := NewScanner(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

const hamMessage = "From: alice@example.com\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Lunch\r\n" +
	"\r\n" +
	"See you at noon tomorrow near the old bakery.\r\n"

func TestScanHamMessage(t *testing.T) {
	s := newTestScanner(t, testConfig(), WithClassifier(fakeClassifier{"ham", 0.97}))

	v, err := s.Scan(context.Background(), []byte(hamMessage))
	require.NoError(t, err)

	assert.False(t, v.IsSpam)
	assert.Equal(t, HamMessage, v.Message)
	assert.Empty(t, v.Findings)
	assert.Empty(t, v.Links)
	assert.NotEmpty(t, v.Tokens)
}

func TestScanGTUBEHeader(t *testing.T) {
	s := newTestScanner(t, testConfig(), WithClassifier(fakeClassifier{"ham", 0.97}))

	raw := "From: alice@example.com\r\n" +
		"X-Test-Line: " + detectors.GTUBE + "\r\n" +
		"Subject: Lunch\r\n" +
		"\r\n" +
		"Nothing to see.\r\n"

	v, err := s.Scan(context.Background(), raw)
	require.NoError(t, err)

	assert.True(t, v.IsSpam)
	require.Len(t, v.Findings, 1)
	assert.Equal(t, findings.KindArbitrary, v.Findings[0].Kind())
	assert.Equal(t, "Spam: matched content rules", v.Message)
}

func TestScanSpamExplanation(t *testing.T) {
	s := newTestScanner(t, testConfig(),
		WithClassifier(fakeClassifier{"spam", 0.99}),
		WithRules(fakeEvaluator{matches: []plugins.Match{{Rule: "lottery"}}}),
	)

	raw := "From: promo@example.com\r\n" +
		"Subject: You won\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		`<p>Claim at <a href="http://192.0.2.7/claim">http://192.0.2.7/claim</a></p>` + "\r\n"

	v, err := s.Scan(context.Background(), raw)
	require.NoError(t, err)

	assert.True(t, v.IsSpam)
	assert.Equal(t, "Spam: classified as spam, phishing links and matched content rules", v.Message)
	assert.Equal(t, []string{"http://192.0.2.7/claim"}, v.Links)

	kinds := make([]findings.Kind, 0, len(v.Findings))
	for _, f := range v.Findings {
		kinds = append(kinds, f.Kind())
	}
	assert.Equal(t, []findings.Kind{findings.KindClassification, findings.KindPhishing, findings.KindArbitrary}, kinds)
}

func TestScanExcludedPattern(t *testing.T) {
	s := newTestScanner(t, testConfig(), WithClassifier(nil))

	v, err := s.Scan(context.Background(), "the report is in /var/log/app/report.txt as usual")
	require.NoError(t, err)

	require.Len(t, v.Findings, 1)
	p, ok := v.Findings[0].(findings.Pattern)
	require.True(t, ok)
	assert.Equal(t, detectors.PatternFilePath, p.Name)
	assert.False(t, v.IsSpam, "file paths are reported but excluded from the verdict")
	assert.Equal(t, HamMessage, v.Message)
}

func TestScanDisabledDetector(t *testing.T) {
	cfg := testConfig()
	cfg.Detectors.Disabled = []string{detectors.NamePattern}
	s := newTestScanner(t, cfg, WithClassifier(nil))

	v, err := s.Scan(context.Background(), "card 4111 1111 1111 1111")
	require.NoError(t, err)
	assert.Empty(t, v.Findings)
	assert.False(t, v.IsSpam)
}

func TestScanMalformedInput(t *testing.T) {
	var calls atomic.Int32
	probe := detectors.Detector{Name: "probe", Run: func(ctx context.Context, s *detectors.Snapshot) ([]findings.Finding, error) {
		calls.Add(1)
		return nil, nil
	}}
	s := newTestScanner(t, testConfig(), WithDetectors(probe))

	tests := []struct {
		name  string
		input any
	}{
		{"unsupported type", 42},
		{"nil bytes", []byte(nil)},
		{"missing file", email.Path(filepath.Join(t.TempDir(), "missing.eml"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := s.Scan(context.Background(), tt.input)
			assert.Nil(t, v)
			assert.True(t, errors.Is(err, email.ErrMalformedInput))
		})
	}
	assert.Zero(t, calls.Load(), "no detector runs for malformed input")
}

func TestScanDetectorFailures(t *testing.T) {
	cfg := testConfig()
	cfg.Detectors.TimeoutMs = 50

	good := findings.Phishing{URL: "http://x.test", Host: "x.test", Reason: "test"}
	list := []detectors.Detector{
		{Name: "panics", Run: func(ctx context.Context, s *detectors.Snapshot) ([]findings.Finding, error) {
			panic("boom")
		}},
		{Name: "errors", Run: func(ctx context.Context, s *detectors.Snapshot) ([]findings.Finding, error) {
			return []findings.Finding{findings.Arbitrary{Rule: "lost"}}, errors.New("backend down")
		}},
		{Name: "hangs", Run: func(ctx context.Context, s *detectors.Snapshot) ([]findings.Finding, error) {
			<-ctx.Done()
			return []findings.Finding{findings.Virus{Filename: "late"}}, ctx.Err()
		}},
		{Name: "works", Run: func(ctx context.Context, s *detectors.Snapshot) ([]findings.Finding, error) {
			return []findings.Finding{good}, nil
		}},
	}
	s := newTestScanner(t, cfg, WithDetectors(list...))

	start := time.Now()
	v, err := s.Scan(context.Background(), "hello")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []findings.Finding{good}, v.Findings)
	assert.True(t, v.IsSpam)
	assert.Equal(t, "Spam: phishing links", v.Message)
}

// slowAntivirus flags content starting with "EVIL" at once and holds every
// other attachment until its context ends
type slowAntivirus struct{}

func (slowAntivirus) Scan(ctx context.Context, content []byte) (plugins.VirusResult, error) {
	if strings.HasPrefix(string(content), "EVIL") {
		return plugins.VirusResult{Infected: true, Viruses: []string{"Test.Virus"}}, nil
	}
	<-ctx.Done()
	return plugins.VirusResult{}, ctx.Err()
}

const twoAttachments = "From: a@sender.test\r\n" +
	"To: b@rcpt.test\r\n" +
	"Subject: invoices\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=XX\r\n" +
	"\r\n" +
	"--XX\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"see attached\r\n" +
	"--XX\r\n" +
	"Content-Type: application/octet-stream\r\n" +
	"Content-Disposition: attachment; filename=\"a.bin\"\r\n" +
	"\r\n" +
	"EVIL payload\r\n" +
	"--XX\r\n" +
	"Content-Type: application/octet-stream\r\n" +
	"Content-Disposition: attachment; filename=\"b.bin\"\r\n" +
	"\r\n" +
	"harmless but slow\r\n" +
	"--XX--\r\n"

func TestScanKeepsFindingsOfTimedOutDetector(t *testing.T) {
	tests := []struct {
		name        string
		detectorMs  int
		antivirusMs int
	}{
		{"per call timeout equals detector timeout", 200, 200},
		{"per call timeout longer than detector timeout", 100, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Detectors.TimeoutMs = tt.detectorMs
			cfg.Antivirus.TimeoutMs = tt.antivirusMs
			s := newTestScanner(t, cfg, WithAntivirus(slowAntivirus{}), WithRules())

			v, err := s.Scan(context.Background(), twoAttachments)
			require.NoError(t, err)

			assert.Contains(t, v.Findings, findings.Finding(findings.Virus{Filename: "a.bin", Viruses: []string{"Test.Virus"}}))
			assert.True(t, v.IsSpam)
			assert.Contains(t, v.Message, "infected attachments")
		})
	}
}

func TestScanDeterministicOrder(t *testing.T) {
	mk := func(fs ...findings.Finding) detectors.Func {
		return func(ctx context.Context, s *detectors.Snapshot) ([]findings.Finding, error) {
			return fs, nil
		}
	}
	list := []detectors.Detector{
		{Name: "a", Run: mk(findings.Pattern{Name: "mac_address", Severity: findings.SeverityMedium})},
		{Name: "b", Run: mk(findings.Macro{Filename: "b.docm"}, findings.Macro{Filename: "a.docm"})},
		{Name: "c", Run: mk(findings.Classification{Category: "spam", Probability: 1})},
	}

	var first []findings.Finding
	for i := 0; i < 20; i++ {
		s := newTestScanner(t, testConfig(), WithDetectors(list...))
		v, err := s.Scan(context.Background(), "x")
		require.NoError(t, err)
		if first == nil {
			first = v.Findings
			continue
		}
		assert.Equal(t, first, v.Findings)
	}
	require.Len(t, first, 4)
	assert.Equal(t, findings.KindClassification, first[0].Kind())
	assert.Equal(t, findings.Macro{Filename: "a.docm"}, first[1])
}

func TestScanStatsAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := profiler.NewMetrics(reg)
	require.NoError(t, err)

	stats := &profiler.ScanStats{}
	s := newTestScanner(t, testConfig(), WithClassifier(nil), WithStats(stats), WithMetrics(m))

	for i := 0; i < 3; i++ {
		_, err := s.Scan(context.Background(), hamMessage)
		require.NoError(t, err)
	}

	snap := s.Stats()
	assert.Equal(t, int64(3), snap.Total)
	assert.Equal(t, int64(0), snap.Spam)
	assert.Positive(t, snap.Last)
	assert.Equal(t, snap, stats.Snapshot())

	assert.Equal(t, 3, s.Timings().GetStats(detectors.NameClassification).Count)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestScanSharedAnalyzer(t *testing.T) {
	a := homograph.New(homograph.Options{})
	s := newTestScanner(t, testConfig(), WithClassifier(nil), WithAnalyzer(a))

	_, err := s.Scan(context.Background(), "visit https://xn--pple-43d.com/login now")
	require.NoError(t, err)
	assert.Positive(t, a.Stats().Entries)
}

func TestComposeAllCombinations(t *testing.T) {
	samples := map[findings.Kind]findings.Finding{
		findings.KindClassification: findings.Classification{Category: "spam", Probability: 0.9},
		findings.KindPhishing:       findings.Phishing{URL: "http://a.test", Host: "a.test", Reason: "r"},
		findings.KindIDNHomograph:   findings.IDNHomograph{Report: homograph.Report{Domain: "a.test"}},
		findings.KindVirus:          findings.Virus{Filename: "a", Viruses: []string{"v"}},
		findings.KindExecutable:     findings.Executable{Filename: "a.exe", Format: "PE"},
		findings.KindMacro:          findings.Macro{Filename: "a.docm", Indicator: "i"},
		findings.KindArbitrary:      findings.Arbitrary{Rule: "r"},
		findings.KindPattern:        findings.Pattern{Name: "credit_card", Severity: findings.SeverityHigh},
	}
	require.Len(t, samples, len(findings.Kinds))

	for mask := 0; mask < 1<<len(findings.Kinds); mask++ {
		var fs []findings.Finding
		var want []string
		// add in reverse so Compose cannot rely on input order
		for i := len(findings.Kinds) - 1; i >= 0; i-- {
			if mask&(1<<i) != 0 {
				k := findings.Kinds[i]
				fs = append(fs, samples[k], samples[k])
			}
		}
		for i, k := range findings.Kinds {
			if mask&(1<<i) != 0 {
				want = append(want, k.Reason())
			}
		}

		isSpam, msg := Compose(fs, nil)
		assert.Equal(t, mask != 0, isSpam, "mask %08b", mask)
		if mask == 0 {
			assert.Equal(t, HamMessage, msg)
			continue
		}
		assert.True(t, strings.HasPrefix(msg, "Spam: "), "mask %08b", mask)
		assert.Equal(t, joinReasons(want), strings.TrimPrefix(msg, "Spam: "), "mask %08b", mask)
	}
}

func TestComposeExcludedPatterns(t *testing.T) {
	excluded := map[string]bool{"file_path": true}
	path := findings.Pattern{Name: "file_path", Severity: findings.SeverityLow}
	card := findings.Pattern{Name: "credit_card", Severity: findings.SeverityHigh}

	isSpam, msg := Compose([]findings.Finding{path}, excluded)
	assert.False(t, isSpam)
	assert.Equal(t, HamMessage, msg)

	isSpam, msg = Compose([]findings.Finding{path, card}, excluded)
	assert.True(t, isSpam)
	assert.Equal(t, "Spam: sensitive data patterns", msg)

	isSpam, msg = Compose([]findings.Finding{path, findings.Macro{Filename: "x"}}, excluded)
	assert.True(t, isSpam)
	assert.Equal(t, "Spam: macro-enabled attachments", msg)
}

func TestJoinReasons(t *testing.T) {
	assert.Equal(t, "a", joinReasons([]string{"a"}))
	assert.Equal(t, "a and b", joinReasons([]string{"a", "b"}))
	assert.Equal(t, "a, b and c", joinReasons([]string{"a", "b", "c"}))
}

func TestScanDir(t *testing.T) {
	in := t.TempDir()
	spamDir := filepath.Join(t.TempDir(), "spam")
	hamDir := filepath.Join(t.TempDir(), "ham")

	require.NoError(t, os.WriteFile(filepath.Join(in, "ham.eml"), []byte(hamMessage), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "gtube.eml"), []byte("Subject: t\r\n\r\n"+detectors.GTUBE+"\r\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.pdf"), []byte("ignored"), 0644))

	s := newTestScanner(t, testConfig(), WithClassifier(nil))

	var seen atomic.Int32
	res, err := s.ScanDir(context.Background(), in, DirOptions{
		OutputPath:    hamDir,
		SpamPath:      spamDir,
		MaxConcurrent: 2,
		OnVerdict:     func(FileVerdict) { seen.Add(1) },
	})
	require.NoError(t, err)

	assert.Equal(t, &FilterResults{Total: 2, Spam: 1, Ham: 1}, res)
	assert.Equal(t, int32(2), seen.Load())
	assert.FileExists(t, filepath.Join(spamDir, "gtube.eml"))
	assert.FileExists(t, filepath.Join(hamDir, "ham.eml"))
	assert.FileExists(t, filepath.Join(in, "notes.pdf"))
}

func TestScanDirKeepsSameNamedFiles(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		existing []string
		want     []string
	}{
		{
			name:  "two subdirectories",
			files: []string{"a/mail.eml", "b/mail.eml"},
			want:  []string{"mail.eml", "mail-1.eml"},
		},
		{
			name:     "name already in output",
			files:    []string{"a/mail.eml"},
			existing: []string{"mail.eml", "mail-1.eml"},
			want:     []string{"mail.eml", "mail-1.eml", "mail-2.eml"},
		},
		{
			name:  "no extension",
			files: []string{"a/msg", "b/msg", "c/msg"},
			want:  []string{"msg", "msg-1", "msg-2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := t.TempDir()
			hamDir := t.TempDir()
			for _, f := range tt.files {
				path := filepath.Join(in, f)
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
				require.NoError(t, os.WriteFile(path, []byte(hamMessage), 0644))
			}
			for _, f := range tt.existing {
				require.NoError(t, os.WriteFile(filepath.Join(hamDir, f), []byte("kept"), 0644))
			}

			s := newTestScanner(t, testConfig(), WithClassifier(nil))
			res, err := s.ScanDir(context.Background(), in, DirOptions{OutputPath: hamDir, MaxConcurrent: 3})
			require.NoError(t, err)
			assert.Equal(t, len(tt.files), res.Ham)

			entries, err := os.ReadDir(hamDir)
			require.NoError(t, err)
			var got []string
			for _, e := range entries {
				got = append(got, e.Name())
			}
			assert.ElementsMatch(t, tt.want, got)

			for _, f := range tt.existing {
				data, err := os.ReadFile(filepath.Join(hamDir, f))
				require.NoError(t, err)
				assert.Equal(t, "kept", string(data))
			}
		})
	}
}

func TestScanRulesDirectory(t *testing.T) {
	cfg := testConfig()
	cfg.Rules.Dir = filepath.Join("..", "..", "rules")
	s := newTestScanner(t, cfg, WithClassifier(fakeClassifier{"ham", 0.97}))

	raw := "From: Support <help@fakebank.com>\r\n" +
		"Subject: Account notice\r\n" +
		"\r\n" +
		"Please review the attached notice.\r\n"

	v, err := s.Scan(context.Background(), raw)
	require.NoError(t, err)

	assert.True(t, v.IsSpam)
	assert.Equal(t, "Spam: matched content rules", v.Message)
	require.NotEmpty(t, v.Findings)
	assert.Equal(t, findings.KindArbitrary, v.Findings[0].Kind())

	v, err = s.Scan(context.Background(), []byte(hamMessage))
	require.NoError(t, err)
	assert.False(t, v.IsSpam)
}
