package tokenizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zpam/spamscan/pkg/task"
)

func newTestTokenizer(t *testing.T, opts Options) *Tokenizer {
	t.Helper()
	tok, err := New(opts)
	require.NoError(t, err)
	return tok
}

func TestTokenizeContractionsAndStopWords(t *testing.T) {
	tok := newTestTokenizer(t, Options{})

	tokens, err := tok.Tokenize(Input{Text: "I don't like u", Locale: "en"})
	require.NoError(t, err)

	surfaces := Surfaces(tokens)
	assert.NotContains(t, surfaces, "i")
	assert.NotContains(t, surfaces, "do")
	assert.Contains(t, surfaces, "like")
	assert.Contains(t, surfaces, "u")
	for _, tk := range tokens {
		assert.Equal(t, "en", tk.Locale)
	}
}

func TestTokenizeIsIdempotent(t *testing.T) {
	tok := newTestTokenizer(t, Options{MaskSensitive: true})
	in := Input{Text: "Claim your FREE prize now!!! Visit https://example.com or call +1 555 123 4567", Locale: "en"}

	first, err := tok.Tokenize(in)
	require.NoError(t, err)
	second, err := tok.Tokenize(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTokenizePreservesDuplicatesAndOrder(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	tokens, err := tok.Tokenize(Input{Text: "money money prize money", Locale: "en"})
	require.NoError(t, err)
	assert.Equal(t, []string{"money", "money", "prize", "money"}, Surfaces(tokens))
}

func TestTokenizeMarkup(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	markup := `<html><head><style>.x{color:red}</style><script>var secret = 1;</script></head>
		<body><p>Winner</p><div>lottery</div></body></html>`

	tokens, err := tok.Tokenize(Input{Text: markup, Locale: "en", IsMarkup: true})
	require.NoError(t, err)

	surfaces := Surfaces(tokens)
	assert.Contains(t, surfaces, "winner")
	assert.Contains(t, surfaces, "lotteri")
	assert.NotContains(t, surfaces, "secret")
	assert.NotContains(t, surfaces, "color")
	assert.NotContains(t, surfaces, "p")
}

func TestTokenizeFullWidth(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	tokens, err := tok.Tokenize(Input{Text: "ＦＲＥＥ ｍｏｎｅｙ", Locale: "en"})
	require.NoError(t, err)
	assert.Equal(t, []string{"free", "money"}, Surfaces(tokens))
}

func TestTokenizeLengthBounds(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	long := strings.Repeat("x", MaxTokenLength+1)
	tokens, err := tok.Tokenize(Input{Text: "prize " + long, Locale: "en"})
	require.NoError(t, err)
	assert.Equal(t, []string{"prize"}, Surfaces(tokens))
}

func TestTokenizeEmpty(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	res, err := tok.Process(Input{})
	require.NoError(t, err)
	assert.Empty(t, res.Tokens)
	assert.Equal(t, task.Default, res.Locale.Source)
	assert.Equal(t, "en", res.Locale.Value)
}

func TestTokenizeHashing(t *testing.T) {
	tok := newTestTokenizer(t, Options{HashTokens: true, HashLength: 12})
	tokens, err := tok.Tokenize(Input{Text: "prize money", Locale: "en"})
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	for _, tk := range tokens {
		assert.Len(t, tk.Surface, 12)
	}
	assert.NotEqual(t, tokens[0].Surface, tokens[1].Surface)
}

func TestTokenizeStrictUnsupportedLocale(t *testing.T) {
	strict := newTestTokenizer(t, Options{FailOnUnsupported: true})
	_, err := strict.Tokenize(Input{Text: "ciao mondo", Locale: "it"})

	var unsupported *UnsupportedLocaleError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "it", unsupported.Locale)

	lenient := newTestTokenizer(t, Options{})
	tokens, err := lenient.Tokenize(Input{Text: "ciao mondo", Locale: "it"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ciao", "mondo"}, Surfaces(tokens))
}

func TestTokenizeLogographic(t *testing.T) {
	tok := newTestTokenizer(t, Options{})
	tokens, err := tok.Tokenize(Input{Text: "免费 获得 奖金！", Locale: "zh-CN"})
	require.NoError(t, err)
	require.NotEmpty(t, tokens)
	for _, tk := range tokens {
		assert.Equal(t, "zh", tk.Locale)
		assert.NotContains(t, tk.Surface, " ")
		assert.NotEqual(t, "！", tk.Surface)
	}
}

func TestTokenizeHyphenatedWords(t *testing.T) {
	tok := newTestTokenizer(t, Options{StemMode: StemAdvanced})
	tokens, err := tok.Tokenize(Input{Text: "running-shoes", Locale: "en"})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-shoe"}, Surfaces(tokens))
}

func TestResolveLocale(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		hint   string
		mixed  bool
		want   string
		source task.Source
	}{
		{"hint wins", "anything", "en-US", false, "en", task.Primary},
		{"detect without hint", "Bonjour, je voudrais vous informer que votre compte bancaire a été suspendu pour des raisons de sécurité", "", false, "fr", task.Primary},
		{"mixed falls back to hint", "12345 67890", "de", true, "de", task.Fallback},
		{"nothing known", "", "", false, "en", task.Default},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolveLocale(tt.text, tt.hint, "en", tt.mixed)
			assert.Equal(t, tt.want, r.Value)
			assert.Equal(t, tt.source, r.Source)
		})
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := map[string]string{
		"en-US":   "en",
		"EN_gb":   "en",
		"pt_BR":   "pt",
		"iw":      "he",
		"in":      "id",
		"nb-NO":   "no",
		"zh-Hans": "zh",
		"":        "",
		" fr ":    "fr",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLocale(in), in)
	}
}

func TestExpandContractions(t *testing.T) {
	tests := []struct {
		text, locale, want string
		changed            bool
	}{
		{"I don't know", "en", "I do not know", true},
		{"We can’t stop", "en", "We cannot stop", true},
		{"you're great", "en", "you are great", true},
		{"l'argent facile", "fr", "le argent facile", true},
		{"no contractions here", "en", "no contractions here", false},
		{"don't", "xx", "don't", false},
	}
	for _, tt := range tests {
		got, changed := ExpandContractions(tt.text, tt.locale)
		assert.Equal(t, tt.want, got, tt.text)
		assert.Equal(t, tt.changed, changed, tt.text)
	}
}

func TestMaskSensitive(t *testing.T) {
	out := MaskSensitive("write to bob@example.com or visit https://evil.example/login and pay $1,000")
	assert.Contains(t, out, PlaceholderEmail)
	assert.Contains(t, out, PlaceholderURL)
	assert.Contains(t, out, PlaceholderMoney)
	assert.NotContains(t, out, "bob@example.com")
}

func TestStripMarkup(t *testing.T) {
	assert.Equal(t, "Hello world", StripMarkup("<b>Hello</b> world"))
	assert.Equal(t, "a & b", StripMarkup("a &amp; b"))
	assert.Equal(t, "", StripMarkup(""))
}

func TestRemoveInvisible(t *testing.T) {
	assert.Equal(t, "paypal", removeInvisible("pay\u200bpal"))
	assert.Equal(t, "a b", removeInvisible("a\x07b"))
}
