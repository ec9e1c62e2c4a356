package tokenizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/width"
)

// StripMarkup returns the visible text of an HTML fragment. Script and style
// bodies are dropped and block elements are separated by spaces.
func StripMarkup(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var sb strings.Builder
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a tokenizer error, either way keep what was read
			return strings.TrimSpace(sb.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && tt == html.StartTagToken {
				skip++
			}
			if isBlock(a) {
				sb.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
			if isBlock(a) {
				sb.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.Br, atom.P, atom.Div, atom.Li, atom.Tr, atom.Td, atom.Th, atom.Table,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Blockquote, atom.Hr:
		return true
	}
	return false
}

// removeInvisible drops format characters and zero-width code points and turns
// control characters into spaces
func removeInvisible(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x200B && r <= 0x200F, r >= 0x2060 && r <= 0x206F, r == 0xFEFF:
			return -1
		case unicode.Is(unicode.Cf, r):
			return -1
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, text)
}

// FoldWidth maps full-width forms to their half-width equivalents
func FoldWidth(text string) string {
	return width.Fold.String(text)
}

// Placeholder words substituted for sensitive values
const (
	PlaceholderURL   = "urlref"
	PlaceholderEmail = "emailref"
	PlaceholderPhone = "phoneref"
	PlaceholderMoney = "moneyref"
)

var sensitivePatterns = []struct {
	re          *regexp.Regexp
	placeholder string
}{
	{regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+`), PlaceholderURL},
	{regexp.MustCompile(`(?i)\b[\w.+-]+@[\w-]+(?:\.[\w-]+)+\b`), PlaceholderEmail},
	{regexp.MustCompile(`(?i)(?:[$€£¥]\s?\d+(?:[.,]\d+)*|\b\d+(?:[.,]\d+)*\s?(?:usd|eur|gbp|dollars?|euros?)\b)`), PlaceholderMoney},
	{regexp.MustCompile(`\+?\(?\d[\d\s().-]{7,}\d\b`), PlaceholderPhone},
}

// MaskSensitive replaces URLs, e-mail addresses, money amounts and phone
// numbers with fixed placeholder words
func MaskSensitive(text string) string {
	for _, p := range sensitivePatterns {
		text = p.re.ReplaceAllString(text, " "+p.placeholder+" ")
	}
	return text
}
