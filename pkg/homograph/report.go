package homograph

import "fmt"

// Report is the outcome of analyzing one domain
type Report struct {
	Domain              string       `json:"domain"`
	RiskScore           float64      `json:"risk_score"`
	Confidence          float64      `json:"confidence"`
	IsInternationalized bool         `json:"is_internationalized"`
	RiskFactors         []string     `json:"risk_factors"`
	Brands              []BrandMatch `json:"brands,omitempty"`
	Recommendations     []string     `json:"recommendations"`
}

const (
	HighRiskThreshold   = 0.8
	MediumRiskThreshold = 0.6
	LowRiskThreshold    = 0.3
)

// Level names the risk band of the score
func (r Report) Level() string {
	switch {
	case r.RiskScore > HighRiskThreshold:
		return "high"
	case r.RiskScore >= MediumRiskThreshold:
		return "medium"
	case r.RiskScore >= LowRiskThreshold:
		return "low"
	default:
		return "safe"
	}
}

func (r Report) clone() Report {
	r.RiskFactors = append([]string{}, r.RiskFactors...)
	r.Brands = append([]BrandMatch(nil), r.Brands...)
	r.Recommendations = append([]string{}, r.Recommendations...)
	return r
}

func recommendations(r Report) []string {
	var recs []string
	switch r.Level() {
	case "high":
		recs = append(recs, "HIGH RISK: block access to this domain")
	case "medium":
		recs = append(recs, "MEDIUM RISK: flag this domain for manual review")
	case "low":
		recs = append(recs, "LOW RISK: monitor links to this domain")
	default:
		recs = append(recs, "Domain appears safe")
	}
	if r.IsInternationalized {
		recs = append(recs, "Internationalized domain: show it in punycode form to expose look-alike characters")
	}
	for _, b := range r.Brands {
		recs = append(recs, fmt.Sprintf("Domain resembles %q: compare it with the brand's official domain", b.Brand))
	}
	return recs
}
