package email

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	_ "github.com/emersion/go-message/charset"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// Message is the set of fields the detectors work on
type Message struct {
	From        string
	Subject     string
	Text        string
	HTML        string
	HeaderLines []string
	Attachments []Attachment
}

// Attachment represents an email attachment with its content
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Size returns the attachment size in bytes
func (a Attachment) Size() int {
	return len(a.Content)
}

// AllText returns subject, text and HTML joined for pattern scanning
func (m Message) AllText() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{m.Subject, m.Text, m.HTML} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Parser handles MIME parsing
type Parser struct {
	// Parts larger than this are skipped, 0 means unlimited
	MaxPartBytes int64
}

// NewParser creates a new email parser
func NewParser() *Parser {
	return &Parser{MaxPartBytes: 64 << 20}
}

// Parse parses an email from a reader
func (p *Parser) Parse(r io.Reader) (Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return Message{}, fmt.Errorf("failed to parse email: %w", err)
	}
	defer mr.Close()

	var msg Message

	fields := mr.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = DecodeHeader(fields.Value())
		}
		msg.HeaderLines = append(msg.HeaderLines, fields.Key()+": "+value)
	}
	if len(msg.HeaderLines) == 0 {
		return Message{}, fmt.Errorf("failed to parse email: no header fields")
	}

	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	} else {
		// unknown charset, keep what can be read
		msg.Subject = DecodeHeader(mr.Header.Get("Subject"))
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	} else {
		msg.From = mr.Header.Get("From")
	}

	var text, html []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return Message{}, fmt.Errorf("failed to read part: %w", err)
		}

		body, ok, err := p.readPart(part.Body)
		if err != nil {
			return Message{}, err
		}
		if !ok {
			continue
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, params, _ := h.ContentType()
			switch {
			case contentType == "" || contentType == "text/plain":
				text = append(text, string(body))
			case contentType == "text/html":
				html = append(html, string(body))
			default:
				// inline binary parts are scanned like attachments
				msg.Attachments = append(msg.Attachments, Attachment{
					Filename:    params["name"],
					ContentType: contentType,
					Content:     body,
				})
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			msg.Attachments = append(msg.Attachments, Attachment{
				Filename:    filename,
				ContentType: contentType,
				Content:     body,
			})
		}
	}

	msg.Text = strings.Join(text, "\n")
	msg.HTML = strings.Join(html, "\n")
	return msg, nil
}

// readPart reads a decoded part body. ok is false when the part is larger
// than MaxPartBytes.
func (p *Parser) readPart(r io.Reader) (body []byte, ok bool, err error) {
	if p.MaxPartBytes > 0 {
		r = io.LimitReader(r, p.MaxPartBytes+1)
	}
	body, err = io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read part body: %w", err)
	}
	if p.MaxPartBytes > 0 && int64(len(body)) > p.MaxPartBytes {
		return nil, false, nil
	}
	return body, true, nil
}

// DecodeHeader decodes RFC 2047 encoded words, returning the input on failure
func DecodeHeader(value string) string {
	dec := new(mime.WordDecoder)
	if decoded, err := dec.DecodeHeader(value); err == nil {
		return decoded
	}
	return value
}

// FromBytes parses raw message bytes
func (p *Parser) FromBytes(raw []byte) (Message, error) {
	return p.Parse(bytes.NewReader(raw))
}
