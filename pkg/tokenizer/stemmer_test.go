package tokenizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStemFailOpen(t *testing.T) {
	s := NewStemmer(StemStandard, nil)
	tokens := []string{"running", "shoes", "cheaply"}

	for _, locale := range []string{"xx", "it", "ja", ""} {
		out, err := s.Stem(tokens, locale, true)
		require.NoError(t, err)
		assert.Equal(t, tokens, out, locale)
	}
}

func TestStemStrict(t *testing.T) {
	s := NewStemmer(StemStandard, nil)
	_, err := s.Stem([]string{"ciao"}, "it", false)

	var unsupported *UnsupportedLocaleError
	require.True(t, errors.As(err, &unsupported))
	assert.Contains(t, err.Error(), "it")
}

func TestStemSupportedLocales(t *testing.T) {
	s := NewStemmer(StemStandard, nil)
	tests := []struct {
		locale string
		in     string
		want   string
	}{
		{"en", "running", "run"},
		{"en-GB", "prizes", "prize"},
		{"fr", "continuellement", "continuel"},
	}
	for _, tt := range tests {
		out, err := s.Stem([]string{tt.in}, tt.locale, false)
		require.NoError(t, err)
		assert.Equal(t, tt.want, out[0], tt.locale)
	}

	out, err := s.Stem([]string{"corriendo"}, "es", false)
	require.NoError(t, err)
	assert.Less(t, len(out[0]), len("corriendo"))

	assert.Equal(t, []string{"en", "es", "fr", "hu", "no", "ru", "sv"}, SupportedLocales())
}

func TestStemAdvancedExclusions(t *testing.T) {
	s := NewStemmer(StemAdvanced, []string{"hu"})
	assert.Equal(t, StemStandard, s.ModeFor("hu"))
	assert.Equal(t, StemAdvanced, s.ModeFor("en"))

	std := NewStemmer(StemStandard, []string{"hu"})
	assert.Equal(t, StemStandard, std.ModeFor("en"))
}

func TestStopWordsUnion(t *testing.T) {
	sw := NewStopWords()

	// one word from each source
	assert.True(t, sw.Has("en", "the"))
	assert.True(t, sw.Has("en", "regards"))
	assert.False(t, sw.Has("en", "like"))
	assert.False(t, sw.Has("en", "u"))

	// unknown locale uses the baseline set
	assert.True(t, sw.Has("xx", "the"))
	assert.Equal(t, []string{"prize"}, sw.Remove("en", []string{"the", "prize", "and"}))
}
