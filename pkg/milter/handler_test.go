package milter

import (
	"errors"
	"strings"
	"testing"

	"github.com/d--j/go-milter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/detectors"
	"github.com/zpam/spamscan/pkg/filter"
	"github.com/zpam/spamscan/pkg/findings"
)

type recordedHeaders struct {
	names  []string
	values map[string]string
	err    error
}

func (r *recordedHeaders) AddHeader(name, value string) error {
	if r.err != nil {
		return r.err
	}
	if r.values == nil {
		r.values = make(map[string]string)
	}
	r.names = append(r.names, name)
	r.values[name] = value
	return nil
}

func newTestHandler(t *testing.T, mutate func(*config.Config)) *Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Reputation.Enabled = false
	cfg.Classifier.Enabled = false
	cfg.Milter.Enabled = true
	if mutate != nil {
		mutate(cfg)
	}
	s, err := filter.NewScanner(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return NewHandler(cfg, s, nil)
}

func feed(t *testing.T, h *Handler, headers [][2]string, body string) {
	t.Helper()
	_, err := h.MailFrom("<sender@example.com>", "", nil)
	require.NoError(t, err)
	for _, hv := range headers {
		_, err := h.Header(hv[0], hv[1], nil)
		require.NoError(t, err)
	}
	_, err = h.Headers(nil)
	require.NoError(t, err)
	_, err = h.BodyChunk([]byte(body), nil)
	require.NoError(t, err)
}

func TestHandlerRebuildsMessage(t *testing.T) {
	h := newTestHandler(t, nil)
	feed(t, h, [][2]string{{"From", "a@example.com"}, {"Subject", "hi"}}, "hello\r\n")

	assert.Equal(t, "From: a@example.com\r\nSubject: hi\r\n\r\nhello\r\n", h.raw.String())

	require.NoError(t, h.Abort(nil))
	assert.Zero(t, h.raw.Len())
}

func TestHandlerScanGTUBE(t *testing.T) {
	h := newTestHandler(t, func(c *config.Config) { c.Milter.RejectSpam = true })
	feed(t, h, [][2]string{{"From", "a@example.com"}, {"Subject", "test"}}, detectors.GTUBE+"\r\n")

	v, err := h.scan(t.Context())
	require.NoError(t, err)
	assert.True(t, v.IsSpam)

	var rec recordedHeaders
	require.NoError(t, h.addSpamHeaders(&rec, v))
	assert.Equal(t, []string{"X-Spamscan-Status", "X-Spamscan-Findings", "X-Spamscan-Reason"}, rec.names)
	assert.Equal(t, "Spam", rec.values["X-Spamscan-Status"])
	assert.Equal(t, "arbitrary=1", rec.values["X-Spamscan-Findings"])

	resp := h.determineAction(v)
	assert.NotEqual(t, milter.RespContinue, resp)
}

func TestHandlerCleanMessage(t *testing.T) {
	h := newTestHandler(t, func(c *config.Config) { c.Milter.RejectSpam = true })
	feed(t, h, [][2]string{{"From", "a@example.com"}, {"Subject", "lunch"}}, "see you at noon\r\n")

	v, err := h.scan(t.Context())
	require.NoError(t, err)
	assert.False(t, v.IsSpam)

	var rec recordedHeaders
	require.NoError(t, h.addSpamHeaders(&rec, v))
	assert.Equal(t, "Clean", rec.values["X-Spamscan-Status"])
	assert.NotContains(t, rec.values, "X-Spamscan-Findings")
	assert.Equal(t, filter.HamMessage, rec.values["X-Spamscan-Reason"])

	assert.Equal(t, milter.RespContinue, h.determineAction(v))
}

func TestHandlerSpamWithoutReject(t *testing.T) {
	h := newTestHandler(t, nil)
	v := &findings.Verdict{IsSpam: true, Message: "Spam: phishing links"}
	assert.Equal(t, milter.RespContinue, h.determineAction(v))
}

func TestAddSpamHeadersError(t *testing.T) {
	h := newTestHandler(t, nil)
	rec := recordedHeaders{err: errors.New("closed")}
	assert.Error(t, h.addSpamHeaders(&rec, &findings.Verdict{}))
}

func TestHandlerTruncatesLargeMessages(t *testing.T) {
	h := newTestHandler(t, nil)
	h.write(strings.Repeat("a", maxMessageBytes-2))
	h.write("bcdef")
	assert.Equal(t, maxMessageBytes, h.raw.Len())
	assert.True(t, h.truncated)
}

func TestFindingKinds(t *testing.T) {
	v := &findings.Verdict{Findings: []findings.Finding{
		findings.Pattern{Name: "credit_card"},
		findings.Phishing{Host: "a"},
		findings.Phishing{Host: "b"},
	}}
	assert.Equal(t, "phishing=2, pattern=1", findingKinds(v))
}
