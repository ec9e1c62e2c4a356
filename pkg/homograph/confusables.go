package homograph

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// confusables maps look-alike code points to the Latin letter they imitate
var confusables = map[rune]rune{
	// Cyrillic
	'а': 'a', 'в': 'b', 'с': 'c', 'ԁ': 'd', 'е': 'e', 'ё': 'e', 'һ': 'h', 'і': 'i',
	'ї': 'i', 'ј': 'j', 'к': 'k', 'ӏ': 'l', 'м': 'm', 'п': 'n', 'о': 'o', 'р': 'p',
	'ԛ': 'q', 'г': 'r', 'ѕ': 's', 'т': 't', 'ц': 'u', 'ѵ': 'v', 'ԝ': 'w', 'х': 'x',
	'у': 'y', 'ү': 'y', 'з': '3', 'ь': 'b',
	'А': 'a', 'В': 'b', 'С': 'c', 'Е': 'e', 'Н': 'h', 'І': 'i', 'Ј': 'j', 'К': 'k',
	'М': 'm', 'О': 'o', 'Р': 'p', 'Ѕ': 's', 'Т': 't', 'Х': 'x', 'У': 'y', 'Ү': 'y',

	// Greek
	'α': 'a', 'β': 'b', 'ε': 'e', 'η': 'n', 'ι': 'i', 'κ': 'k', 'ν': 'v', 'ο': 'o',
	'ρ': 'p', 'τ': 't', 'υ': 'u', 'χ': 'x', 'γ': 'y', 'ω': 'w', 'ϲ': 'c', 'ϳ': 'j',
	'Α': 'a', 'Β': 'b', 'Ε': 'e', 'Η': 'h', 'Ι': 'i', 'Κ': 'k', 'Μ': 'm', 'Ν': 'n',
	'Ο': 'o', 'Ρ': 'p', 'Τ': 't', 'Υ': 'y', 'Χ': 'x', 'Ζ': 'z',

	// Armenian
	'օ': 'o', 'ս': 'u', 'հ': 'h', 'ո': 'n', 'ց': 'g', 'զ': 'q', 'ա': 'w',

	// Latin look-alikes outside ASCII
	'ı': 'i', 'ɩ': 'i', 'ł': 'l', 'ǀ': 'l', 'ɑ': 'a', 'ɡ': 'g', 'ʏ': 'y', 'ƅ': 'b',
	'ɢ': 'g', 'ʜ': 'h', 'ɴ': 'n', 'ʀ': 'r', 'ꜱ': 's', 'ᴄ': 'c', 'ᴏ': 'o', 'ᴠ': 'v',
	'ᴡ': 'w', 'ᴢ': 'z', 'ℓ': 'l',

	// Cherokee and Latin-like symbols
	'Ꭺ': 'a', 'Ᏼ': 'b', 'Ꮯ': 'c', 'Ꭼ': 'e', 'Ꮋ': 'h', 'Ꮃ': 'w', 'Ꮪ': 's', 'Ꭲ': 't',
}

// latinFor returns the Latin letter or digit r imitates. Mathematical
// alphanumerics, full-width and other compatibility forms are resolved
// through NFKC.
func latinFor(r rune) (rune, bool) {
	if r < 0x80 {
		return 0, false
	}
	if l, ok := confusables[r]; ok {
		return l, true
	}
	folded := []rune(norm.NFKC.String(string(r)))
	if len(folded) == 1 && folded[0] < 0x80 {
		f := unicode.ToLower(folded[0])
		if unicode.IsLetter(f) || unicode.IsDigit(f) {
			return f, true
		}
	}
	return 0, false
}

// Substitution records one look-alike character
type Substitution struct {
	From rune
	To   rune
}

func (s Substitution) String() string {
	return string(s.From) + "->" + string(s.To)
}

// confusableAnalysis scores the share of look-alike characters in s
type confusableAnalysis struct {
	score         float64
	substitutions []Substitution
}

func analyzeConfusables(s string) confusableAnalysis {
	var res confusableAnalysis
	total := 0
	count := 0
	for _, r := range s {
		total++
		if l, ok := latinFor(r); ok {
			count++
			res.substitutions = append(res.substitutions, Substitution{From: r, To: l})
		}
	}
	if total == 0 || count == 0 {
		return res
	}
	res.score = min(0.8*float64(count)/float64(total), 0.6)
	return res
}

// foldConfusables rewrites look-alikes to Latin
func foldConfusables(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if l, ok := latinFor(r); ok {
			out = append(out, l)
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
