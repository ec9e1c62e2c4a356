package tokenizer

import (
	"regexp"
	"strings"
)

var contractionRe = regexp.MustCompile(`[\p{L}]+['’][\p{L}]*`)

// whole-word expansions, checked before suffix rules
var contractions = map[string]map[string]string{
	"en": {
		"can't":   "cannot",
		"won't":   "will not",
		"shan't":  "shall not",
		"ain't":   "is not",
		"let's":   "let us",
		"y'all":   "you all",
		"ma'am":   "madam",
		"o'clock": "of the clock",
		"it's":    "it is",
		"that's":  "that is",
		"there's": "there is",
		"here's":  "here is",
		"what's":  "what is",
		"who's":   "who is",
		"where's": "where is",
		"he's":    "he is",
		"she's":   "she is",
	},
}

type affixRule struct {
	affix       string
	replacement string
}

var contractionSuffixes = map[string][]affixRule{
	"en": {
		{"n't", " not"},
		{"'re", " are"},
		{"'ve", " have"},
		{"'ll", " will"},
		{"'d", " would"},
		{"'m", " am"},
	},
}

var contractionPrefixes = map[string][]affixRule{
	"fr": {
		{"qu'", "que "},
		{"l'", "le "},
		{"j'", "je "},
		{"c'", "ce "},
		{"d'", "de "},
		{"n'", "ne "},
		{"s'", "se "},
		{"m'", "me "},
		{"t'", "te "},
	},
	"it": {
		{"l'", "lo "},
		{"un'", "una "},
		{"dell'", "della "},
		{"all'", "alla "},
	},
}

// ExpandContractions rewrites contracted words for locales that have a table.
// The second return reports whether anything changed; text without a table or
// without matches is returned unchanged.
func ExpandContractions(text, locale string) (string, bool) {
	locale = NormalizeLocale(locale)
	words := contractions[locale]
	suffixes := contractionSuffixes[locale]
	prefixes := contractionPrefixes[locale]
	if words == nil && suffixes == nil && prefixes == nil {
		return text, false
	}

	changed := false
	out := contractionRe.ReplaceAllStringFunc(text, func(m string) string {
		w := strings.ToLower(strings.ReplaceAll(m, "’", "'"))
		if exp, ok := words[w]; ok {
			changed = changed || exp != w
			return exp
		}
		for _, rule := range suffixes {
			if strings.HasSuffix(w, rule.affix) && len(w) > len(rule.affix) {
				changed = true
				return w[:len(w)-len(rule.affix)] + rule.replacement
			}
		}
		for _, rule := range prefixes {
			if strings.HasPrefix(w, rule.affix) && len(w) > len(rule.affix) {
				changed = true
				return rule.replacement + w[len(rule.affix):]
			}
		}
		return m
	})
	return out, changed
}
