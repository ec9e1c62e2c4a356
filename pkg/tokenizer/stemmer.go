package tokenizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kljensen/snowball"
)

// StemMode selects how aggressively tokens are stemmed
type StemMode string

const (
	StemStandard StemMode = "standard"
	// StemAdvanced also stems each part of hyphenated words and words that
	// snowball would otherwise leave alone as stop words
	StemAdvanced StemMode = "advanced"
)

// stemAlgorithms is the fixed registry of supported locales
var stemAlgorithms = map[string]string{
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"ru": "russian",
	"sv": "swedish",
	"no": "norwegian",
	"hu": "hungarian",
}

// UnsupportedLocaleError is returned in strict mode for locales without a stemmer
type UnsupportedLocaleError struct {
	Locale string
}

func (e *UnsupportedLocaleError) Error() string {
	return fmt.Sprintf("stemming not supported for locale %q", e.Locale)
}

// Stemmer applies the registry algorithm for a locale. It holds no mutable
// state and is safe for concurrent use.
type Stemmer struct {
	mode       StemMode
	exclusions map[string]bool
}

// NewStemmer creates a stemmer. Locales listed in advancedExclusions are
// always stemmed in standard mode.
func NewStemmer(mode StemMode, advancedExclusions []string) *Stemmer {
	if mode == "" {
		mode = StemStandard
	}
	ex := make(map[string]bool, len(advancedExclusions))
	for _, l := range advancedExclusions {
		ex[NormalizeLocale(l)] = true
	}
	return &Stemmer{mode: mode, exclusions: ex}
}

// SupportedLocales lists the locales with a stemming algorithm
func SupportedLocales() []string {
	out := make([]string, 0, len(stemAlgorithms))
	for l := range stemAlgorithms {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether locale has a stemming algorithm
func (s *Stemmer) Supports(locale string) bool {
	_, ok := stemAlgorithms[NormalizeLocale(locale)]
	return ok
}

// ModeFor returns the effective mode for locale
func (s *Stemmer) ModeFor(locale string) StemMode {
	if s.mode == StemAdvanced && s.exclusions[NormalizeLocale(locale)] {
		return StemStandard
	}
	return s.mode
}

// Stem stems every token. For an unsupported locale the tokens come back
// unchanged when fallbackToOriginal is set, otherwise an
// *UnsupportedLocaleError is returned.
func (s *Stemmer) Stem(tokens []string, locale string, fallbackToOriginal bool) ([]string, error) {
	locale = NormalizeLocale(locale)
	algorithm, ok := stemAlgorithms[locale]
	if !ok {
		if fallbackToOriginal {
			return tokens, nil
		}
		return nil, &UnsupportedLocaleError{Locale: locale}
	}

	mode := s.ModeFor(locale)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = s.stemWord(t, algorithm, mode)
	}
	return out, nil
}

func (s *Stemmer) stemWord(word, algorithm string, mode StemMode) string {
	if mode == StemAdvanced && strings.Contains(word, "-") {
		parts := strings.Split(word, "-")
		for i, p := range parts {
			parts[i] = stemOne(p, algorithm, true)
		}
		return strings.Join(parts, "-")
	}
	return stemOne(word, algorithm, mode == StemAdvanced)
}

// stemOne fails open: a stemmer error keeps the word as it was
func stemOne(word, algorithm string, stemStopWords bool) string {
	if word == "" {
		return word
	}
	stemmed, err := snowball.Stem(word, algorithm, stemStopWords)
	if err != nil || stemmed == "" {
		return word
	}
	return stemmed
}
