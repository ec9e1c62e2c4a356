package tokenizer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/zpam/spamscan/pkg/task"
	"go.uber.org/zap"
)

const (
	MinTokenLength = 1
	MaxTokenLength = 50
)

// Token is a normalized word unit
type Token struct {
	Surface string `json:"surface"`
	Locale  string `json:"locale"`
}

// Options configures a Tokenizer
type Options struct {
	DefaultLocale      string
	MixedLanguage      bool
	StemMode           StemMode
	FailOnUnsupported  bool
	AdvancedExclusions []string
	HashTokens         bool
	HashLength         int
	MaskSensitive      bool
	ExtraLetters       string
	Logger             *zap.Logger
}

// Input is one piece of text to tokenize
type Input struct {
	Text     string
	Locale   string // hint, may be empty
	IsMarkup bool
}

// Result carries the tokens and the path each fallback step took
type Result struct {
	Tokens               []Token
	Locale               task.Resolved[string]
	ContractionsExpanded bool
	Stemmed              bool
}

// Tokenizer turns raw text into classifier-ready tokens. All tables are
// built in New and read-only afterwards.
type Tokenizer struct {
	opts      Options
	words     segmenter
	boundary  segmenter
	stopWords *StopWords
	stemmer   *Stemmer
	logger    *zap.Logger
}

// New creates a tokenizer
func New(opts Options) (*Tokenizer, error) {
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = BaselineLocale
	}
	if opts.HashLength <= 0 || opts.HashLength > sha256.Size*2 {
		opts.HashLength = 16
	}
	if opts.ExtraLetters == "" {
		opts.ExtraLetters = DefaultExtraLetters
	}

	words, err := newWordSegmenter(opts.ExtraLetters)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Tokenizer{
		opts:      opts,
		words:     words,
		boundary:  boundarySegmenter{},
		stopWords: NewStopWords(),
		stemmer:   NewStemmer(opts.StemMode, opts.AdvancedExclusions),
		logger:    logger,
	}, nil
}

// Tokenize returns the token sequence for in
func (t *Tokenizer) Tokenize(in Input) ([]Token, error) {
	res, err := t.Process(in)
	if err != nil {
		return nil, err
	}
	return res.Tokens, nil
}

// Strings tokenizes text with the default options and returns surface forms.
// It never fails: strict stemming errors fall back to unstemmed tokens.
func (t *Tokenizer) Strings(text string) []string {
	res, err := t.Process(Input{Text: text})
	if err != nil {
		t.logger.Debug("tokenize failed, using unstemmed tokens", zap.Error(err))
		return Surfaces(t.unstemmed(Input{Text: text}))
	}
	return Surfaces(res.Tokens)
}

// Process runs the full pipeline and reports which fallbacks were taken
func (t *Tokenizer) Process(in Input) (Result, error) {
	var res Result

	text := in.Text
	if in.IsMarkup {
		text = StripMarkup(text)
	}
	text = removeInvisible(text)

	res.Locale = resolveLocale(text, in.Locale, t.opts.DefaultLocale, t.opts.MixedLanguage)
	locale := res.Locale.Value

	text = FoldWidth(text)
	text, res.ContractionsExpanded = ExpandContractions(text, locale)
	if t.opts.MaskSensitive {
		text = MaskSensitive(text)
	}

	words := t.segment(text, locale)
	words = t.stopWords.Remove(locale, words)

	stemmed, err := t.stemmer.Stem(words, locale, !t.opts.FailOnUnsupported)
	if err != nil {
		return Result{}, err
	}
	res.Stemmed = t.stemmer.Supports(locale)

	res.Tokens = make([]Token, 0, len(stemmed))
	for _, w := range stemmed {
		if t.opts.HashTokens {
			w = t.hash(w)
		}
		res.Tokens = append(res.Tokens, Token{Surface: w, Locale: locale})
	}
	return res, nil
}

// segment splits text, then lower-cases, trims and applies length bounds
func (t *Tokenizer) segment(text, locale string) []string {
	seg := t.words
	if IsLogographic(locale) {
		seg = t.boundary
	}

	raw := seg.Segment(text)
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.TrimSpace(strings.ToLower(w))
		n := utf8.RuneCountInString(w)
		if n < MinTokenLength || n > MaxTokenLength {
			continue
		}
		out = append(out, w)
	}
	return out
}

func (t *Tokenizer) unstemmed(in Input) []Token {
	text := FoldWidth(removeInvisible(in.Text))
	locale := resolveLocale(text, in.Locale, t.opts.DefaultLocale, t.opts.MixedLanguage).Value
	words := t.stopWords.Remove(locale, t.segment(text, locale))
	tokens := make([]Token, len(words))
	for i, w := range words {
		if t.opts.HashTokens {
			w = t.hash(w)
		}
		tokens[i] = Token{Surface: w, Locale: locale}
	}
	return tokens
}

func (t *Tokenizer) hash(w string) string {
	sum := sha256.Sum256([]byte(w))
	return hex.EncodeToString(sum[:])[:t.opts.HashLength]
}

// StopWords returns the tokenizer's stop-word sets
func (t *Tokenizer) StopWords() *StopWords {
	return t.stopWords
}

// Surfaces returns the surface forms of tokens
func Surfaces(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Surface
	}
	return out
}
