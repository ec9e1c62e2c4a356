package milter

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/d--j/go-milter"
	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/filter"
	"github.com/zpam/spamscan/pkg/findings"
	"go.uber.org/zap"
)

// maxMessageBytes caps how much of a message is buffered for scanning
const maxMessageBytes = 32 << 20

// headerAdder is the part of milter.Modifier used to report verdicts
type headerAdder interface {
	AddHeader(name, value string) error
}

// Handler collects one SMTP transaction and scans it at end of message
type Handler struct {
	milter.NoOpMilter
	config  *config.Config
	scanner *filter.Scanner
	logger  *zap.Logger

	// Message being rebuilt during the milter session
	raw       bytes.Buffer
	truncated bool
	inBody    bool

	// Connection/session data
	connectHost string
	connectAddr string
	heloName    string
	mailFrom    string
	rcptTo      []string

	startTime time.Time
}

// NewHandler creates a new milter handler
func NewHandler(cfg *config.Config, scanner *filter.Scanner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		config:    cfg,
		scanner:   scanner,
		logger:    logger,
		startTime: time.Now(),
	}
}

// NewConnection is called when a new SMTP connection is established
func (h *Handler) NewConnection(m milter.Modifier) error {
	h.startTime = time.Now()
	return nil
}

// Connect is called when connection information is available
func (h *Handler) Connect(host string, family string, port uint16, addr string, m milter.Modifier) (*milter.Response, error) {
	h.connectHost = host
	h.connectAddr = addr
	return milter.RespContinue, nil
}

// Helo is called when HELO/EHLO is received
func (h *Handler) Helo(name string, m milter.Modifier) (*milter.Response, error) {
	h.heloName = name
	return milter.RespContinue, nil
}

// MailFrom starts a new message
func (h *Handler) MailFrom(from string, esmtpArgs string, m milter.Modifier) (*milter.Response, error) {
	h.reset()
	h.mailFrom = from
	h.startTime = time.Now()
	return milter.RespContinue, nil
}

// RcptTo is called for each RCPT TO
func (h *Handler) RcptTo(rcptTo string, esmtpArgs string, m milter.Modifier) (*milter.Response, error) {
	h.rcptTo = append(h.rcptTo, rcptTo)
	return milter.RespContinue, nil
}

// Header is called for each header
func (h *Handler) Header(name string, value string, m milter.Modifier) (*milter.Response, error) {
	h.write(name + ": " + value + "\r\n")
	return milter.RespContinue, nil
}

// Headers ends the header block
func (h *Handler) Headers(m milter.Modifier) (*milter.Response, error) {
	h.startBody()
	return milter.RespContinue, nil
}

// BodyChunk is called for each body chunk
func (h *Handler) BodyChunk(chunk []byte, m milter.Modifier) (*milter.Response, error) {
	h.startBody()
	h.write(string(chunk))
	return milter.RespContinue, nil
}

// EndOfMessage scans the collected message and decides what happens to it
func (h *Handler) EndOfMessage(m milter.Modifier) (*milter.Response, error) {
	defer h.reset()

	verdict, err := h.scan(context.Background())
	if err != nil {
		// scanning failures never hold mail back
		h.logger.Warn("scan failed, accepting message", zap.Error(err))
		return milter.RespContinue, nil
	}

	if h.config.Milter.AddSpamHeaders {
		if err := h.addSpamHeaders(m, verdict); err != nil {
			return milter.RespTempFail, fmt.Errorf("failed to add spam headers: %w", err)
		}
	}

	return h.determineAction(verdict), nil
}

// Abort is called when the message is aborted
func (h *Handler) Abort(m milter.Modifier) error {
	h.reset()
	return nil
}

// Cleanup is called when the connection is closed
func (h *Handler) Cleanup(m milter.Modifier) {
	h.reset()
}

func (h *Handler) scan(ctx context.Context) (*findings.Verdict, error) {
	h.startBody()
	verdict, err := h.scanner.Scan(ctx, h.raw.Bytes())
	if err != nil {
		return nil, err
	}

	h.logger.Info("message scanned",
		zap.String("client", h.connectAddr),
		zap.String("helo", h.heloName),
		zap.String("mail_from", h.mailFrom),
		zap.Int("recipients", len(h.rcptTo)),
		zap.Bool("spam", verdict.IsSpam),
		zap.Bool("truncated", h.truncated),
		zap.Duration("elapsed", time.Since(h.startTime)))
	return verdict, nil
}

func (h *Handler) write(s string) {
	if h.truncated {
		return
	}
	if h.raw.Len()+len(s) > maxMessageBytes {
		s = s[:maxMessageBytes-h.raw.Len()]
		h.truncated = true
	}
	h.raw.WriteString(s)
}

func (h *Handler) startBody() {
	if !h.inBody {
		h.inBody = true
		h.write("\r\n")
	}
}

func (h *Handler) reset() {
	h.raw.Reset()
	h.truncated = false
	h.inBody = false
	h.mailFrom = ""
	h.rcptTo = nil
}

// addSpamHeaders adds <prefix>Status, Findings and Reason headers
func (h *Handler) addSpamHeaders(m headerAdder, v *findings.Verdict) error {
	prefix := h.config.Milter.SpamHeaderPrefix

	status := "Clean"
	if v.IsSpam {
		status = "Spam"
	}
	if err := m.AddHeader(prefix+"Status", status); err != nil {
		return err
	}

	if kinds := findingKinds(v); kinds != "" {
		if err := m.AddHeader(prefix+"Findings", kinds); err != nil {
			return err
		}
	}

	return m.AddHeader(prefix+"Reason", v.Message)
}

// determineAction rejects spam when configured to, and accepts everything else
func (h *Handler) determineAction(v *findings.Verdict) *milter.Response {
	if !v.IsSpam || !h.config.Milter.RejectSpam {
		return milter.RespContinue
	}

	reason := h.config.Milter.RejectMessage
	if reason == "" {
		reason = "5.7.1 " + v.Message
	}
	resp, err := milter.RejectWithCodeAndReason(550, reason)
	if err != nil {
		return milter.RespReject
	}
	return resp
}

// findingKinds lists each finding kind with its count, e.g. "phishing=2, pattern=1"
func findingKinds(v *findings.Verdict) string {
	byKind := v.ByKind()
	parts := make([]string, 0, len(byKind))
	for _, k := range findings.Kinds {
		if n := len(byKind[k]); n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	return strings.Join(parts, ", ")
}
