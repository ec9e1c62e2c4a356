package homograph

import (
	"sort"
	"strings"
	"unicode"
)

// Script is a coarse writing-system class
type Script string

const (
	ScriptLatin    Script = "latin"
	ScriptCyrillic Script = "cyrillic"
	ScriptGreek    Script = "greek"
	ScriptCJK      Script = "cjk"
	ScriptHebrew   Script = "hebrew"
	ScriptArabic   Script = "arabic"
	ScriptOther    Script = "other"
)

func scriptOf(r rune) Script {
	switch {
	case unicode.In(r, unicode.Latin):
		return ScriptLatin
	case unicode.In(r, unicode.Cyrillic):
		return ScriptCyrillic
	case unicode.In(r, unicode.Greek):
		return ScriptGreek
	case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul):
		return ScriptCJK
	case unicode.In(r, unicode.Hebrew):
		return ScriptHebrew
	case unicode.In(r, unicode.Arabic):
		return ScriptArabic
	default:
		return ScriptOther
	}
}

// scriptsIn returns the sorted set of scripts used by the letters of s.
// Digits, dots and hyphens carry no script.
func scriptsIn(s string) []Script {
	seen := make(map[Script]bool)
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		seen[scriptOf(r)] = true
	}
	out := make([]Script, 0, len(seen))
	for sc := range seen {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// mixingScore returns the script-mixing contribution and its factor name
func mixingScore(scripts []Script) (float64, string) {
	if len(scripts) < 2 {
		return 0, ""
	}
	has := make(map[Script]bool, len(scripts))
	names := make([]string, len(scripts))
	for i, sc := range scripts {
		has[sc] = true
		names[i] = string(sc)
	}
	factor := "mixed_scripts:" + strings.Join(names, "+")
	if has[ScriptLatin] && (has[ScriptCyrillic] || has[ScriptGreek]) {
		return 0.4, factor
	}
	return 0.2, factor
}
