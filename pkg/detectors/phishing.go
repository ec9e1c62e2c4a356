package detectors

import (
	"context"
	"fmt"
	"net"

	"github.com/zpam/spamscan/pkg/findings"
	"github.com/zpam/spamscan/pkg/homograph"
)

// Phishing flags links whose destination is not what it appears to be:
// blocklisted hosts, raw IP hosts, credentials hiding the real host, anchors
// whose text names another site, and ASCII look-alikes of known brands.
// Internationalized look-alikes are left to the IDN homograph detector.
func Phishing(deps Deps) Func {
	return func(ctx context.Context, s *Snapshot) ([]findings.Finding, error) {
		hosts := s.LinkHosts()
		if len(hosts) == 0 {
			return nil, nil
		}

		var out []findings.Finding
		add := func(l Link, reason string) {
			out = append(out, findings.Phishing{URL: l.URL, Host: l.Host, Reason: reason})
		}

		blocked := s.Blocked(ctx, deps.Reputation, deps.MaxConcurrent, deps.MaxLookups)

		for _, host := range hosts {
			link := s.firstLink(host)
			if blocked[host] {
				add(link, "host is on the DNS blocklist")
			}
			if net.ParseIP(host) != nil {
				add(link, "link points at a raw IP address")
			}
			if deps.Analyzer == nil {
				continue
			}
			r := deps.Analyzer.Analyze(host, s.homographContext(host, blocked))
			if !r.IsInternationalized && len(r.Brands) > 0 && r.RiskScore >= deps.FindingThreshold {
				add(link, fmt.Sprintf("domain imitates %s", r.Brands[0].Brand))
			}
		}

		for _, l := range s.links().links {
			if l.Userinfo {
				add(l, "credentials in the URL hide the real host")
			}
		}

		for _, a := range s.Anchors() {
			shown, ok := homograph.DisplayHost(a.Text)
			if ok && !sameSite(shown, a.Host) {
				add(a, fmt.Sprintf("link text shows %s", shown))
			}
		}

		return out, nil
	}
}
