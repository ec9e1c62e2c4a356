package homograph

import (
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// DefaultBrands are the names most often imitated in phishing campaigns
var DefaultBrands = []string{
	"adobe", "alibaba", "amazon", "americanexpress", "apple", "bankofamerica",
	"binance", "chase", "citibank", "coinbase", "dhl", "docusign", "dropbox",
	"ebay", "facebook", "fedex", "github", "gmail", "google", "icloud",
	"instagram", "linkedin", "mastercard", "microsoft", "netflix", "office",
	"outlook", "paypal", "spotify", "steam", "twitter", "usps", "visa",
	"wellsfargo", "whatsapp", "yahoo",
}

// DefaultWhitelist holds legitimate internationalized domains, in Unicode form
var DefaultWhitelist = []string{
	"münchen.de",
	"bücher.de",
	"köln.de",
	"zürich.ch",
	"straße.de",
	"президент.рф",
	"правительство.рф",
	"москва.рф",
	"пример.испытание",
	"例え.テスト",
	"中国互联网络信息中心.中国",
}

// BrandMatch is one brand the domain resembles
type BrandMatch struct {
	Brand      string  `json:"brand"`
	Similarity float64 `json:"similarity"`
}

// toUnicode decodes punycode labels. On failure the input is returned.
func toUnicode(domain string) (string, error) {
	u, err := idna.Punycode.ToUnicode(domain)
	if err != nil {
		return domain, err
	}
	return u, nil
}

func hasPunycode(domain string) bool {
	for _, label := range strings.Split(domain, ".") {
		if strings.HasPrefix(label, "xn--") {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// registrablePart strips a leading www and the public suffix
func registrablePart(domain string) string {
	domain = strings.TrimPrefix(domain, "www.")
	suffix, _ := publicsuffix.PublicSuffix(domain)
	if suffix == "" || suffix == domain {
		return domain
	}
	return strings.TrimSuffix(domain, "."+suffix)
}

// brandCandidates lists the strings compared against each brand: every label,
// the hyphen-separated parts of a label and the whole remainder joined
func brandCandidates(rest string) []string {
	labels := strings.Split(rest, ".")
	out := make([]string, 0, len(labels)*2+1)
	for _, l := range labels {
		if l == "" {
			continue
		}
		out = append(out, l)
		if strings.Contains(l, "-") {
			out = append(out, strings.ReplaceAll(l, "-", ""))
			for _, part := range strings.Split(l, "-") {
				if part != "" {
					out = append(out, part)
				}
			}
		}
	}
	if len(labels) > 1 {
		out = append(out, strings.ReplaceAll(strings.ReplaceAll(rest, ".", ""), "-", ""))
	}
	return out
}

// matchBrands compares the folded, decoded domain against brands. A pure
// ASCII domain whose registrable label is exactly a brand belongs to that
// brand, and neither it nor its subdomains are matched.
func matchBrands(literal, decoded string, brands []string, threshold float64) []BrandMatch {
	if isASCII(literal) {
		labels := strings.Split(registrablePart(literal), ".")
		own := labels[len(labels)-1]
		for _, brand := range brands {
			if brand == own {
				return nil
			}
		}
	}

	candidates := brandCandidates(registrablePart(foldConfusables(decoded)))

	var matches []BrandMatch
	for _, brand := range brands {
		best := 0.0
		for _, c := range candidates {
			best = max(best, similarity(c, brand))
		}
		if best > threshold {
			matches = append(matches, BrandMatch{Brand: brand, Similarity: best})
		}
	}
	return matches
}

// similarity is 1 - distance/maxLen over runes
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(ra, rb))/float64(longest)
}

// levenshteinDistance calculates the edit distance between two rune slices
func levenshteinDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(s2); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}
	return matrix[len(s1)][len(s2)]
}
