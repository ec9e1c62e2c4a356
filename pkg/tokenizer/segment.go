package tokenizer

import (
	"fmt"
	"regexp"
	"unicode"

	"github.com/rivo/uniseg"
)

// DefaultExtraLetters accepts extended Latin, Cyrillic and Vietnamese letters
// in addition to the Unicode letter classes
const DefaultExtraLetters = `\x{00C0}-\x{024F}\x{0400}-\x{04FF}\x{1EA0}-\x{1EF9}`

// segmenter splits normalized text into raw word units
type segmenter interface {
	Segment(text string) []string
}

// wordSegmenter matches runs of word characters with embedded hyphens
type wordSegmenter struct {
	re *regexp.Regexp
}

func newWordSegmenter(extraLetters string) (*wordSegmenter, error) {
	class := `\p{L}\p{M}\p{N}_` + extraLetters
	re, err := regexp.Compile(fmt.Sprintf(`[%[1]s]+(?:-[%[1]s]+)*`, class))
	if err != nil {
		return nil, fmt.Errorf("invalid extra letter class %q: %w", extraLetters, err)
	}
	return &wordSegmenter{re: re}, nil
}

func (s *wordSegmenter) Segment(text string) []string {
	return s.re.FindAllString(text, -1)
}

// boundarySegmenter uses Unicode word boundaries for scripts written without
// spaces between words
type boundarySegmenter struct{}

func (boundarySegmenter) Segment(text string) []string {
	var words []string
	state := -1
	for len(text) > 0 {
		var word string
		word, text, state = uniseg.FirstWordInString(text, state)
		if hasWordRune(word) {
			words = append(words, word)
		}
	}
	return words
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}
