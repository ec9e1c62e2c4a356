package tokenizer

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/zpam/spamscan/pkg/task"
)

// BaselineLocale is used whenever nothing better is known
const BaselineLocale = "en"

// localeAliases maps deprecated or alternate codes to canonical ones
var localeAliases = map[string]string{
	"iw": "he",
	"in": "id",
	"ji": "yi",
	"jw": "jv",
	"mo": "ro",
	"nb": "no",
	"nn": "no",
	"tl": "fil",
	"sh": "sr",

	"zh-hans": "zh",
	"zh-hant": "zh",
}

// logographic locales are segmented on Unicode word boundaries
var logographic = map[string]bool{
	"zh": true,
	"ja": true,
	"th": true,
	"lo": true,
	"km": true,
	"my": true,
}

// NormalizeLocale collapses regional variants to a base code and applies the
// alias table. "en-US", "EN_gb" and "en" all become "en".
func NormalizeLocale(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if l == "" {
		return ""
	}
	l = strings.ReplaceAll(l, "_", "-")
	if alias, ok := localeAliases[l]; ok {
		return alias
	}
	if i := strings.IndexByte(l, '-'); i > 0 {
		l = l[:i]
	}
	if alias, ok := localeAliases[l]; ok {
		return alias
	}
	return l
}

// IsLogographic reports whether locale uses boundary segmentation
func IsLogographic(locale string) bool {
	return logographic[NormalizeLocale(locale)]
}

// DetectLocale returns the top-ranked language of text as an ISO 639-1 code.
func DetectLocale(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return "", false
	}
	return NormalizeLocale(code), true
}

// resolveLocale picks the locale for a text. A hint wins unless mixed-language
// mode asks for detection; detection falls back to the hint, then the default.
func resolveLocale(text, hint, def string, mixed bool) task.Resolved[string] {
	hint = NormalizeLocale(hint)
	if def = NormalizeLocale(def); def == "" {
		def = BaselineLocale
	}

	if hint != "" && !mixed {
		return task.Resolved[string]{Value: hint, Source: task.Primary}
	}

	var fromHint task.Step[string]
	if hint != "" {
		fromHint = func() (string, bool) { return hint, true }
	}

	return task.Resolve(
		func() (string, bool) { return DetectLocale(text) },
		def,
		fromHint,
	)
}
