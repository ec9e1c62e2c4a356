package detectors

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/idna"
)

// Link is one normalized URL found in a message
type Link struct {
	URL  string
	Host string
	// Text is the visible anchor text, empty for links found in plain text
	Text string
	// Userinfo is set for URLs like http://bank.com@evil.example/
	Userinfo bool
}

type linkSet struct {
	links   []Link
	anchors []Link
	hosts   []string
}

var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"'\x60]+`)

const trailingPunct = ".,;:!?)]}'\""

// normalizeURL canonicalizes raw so that equivalent URLs compare equal
func normalizeURL(raw string) (Link, bool) {
	raw = strings.TrimRight(strings.TrimSpace(raw), trailingPunct)
	if raw == "" {
		return Link{}, false
	}
	if strings.HasPrefix(strings.ToLower(raw), "www.") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return Link{}, false
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return Link{}, false
	}
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	// the URL carries the punycode form, Host keeps what the message showed
	ascii, err := idna.Punycode.ToASCII(host)
	if err != nil {
		return Link{}, false
	}
	u.Host = ascii
	if port != "" {
		u.Host = net.JoinHostPort(ascii, port)
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
	}

	return Link{URL: u.String(), Host: host, Userinfo: u.User != nil}, true
}

// extractLinks collects URLs from the text part and the HTML part, in that
// order, deduplicated after normalization
func extractLinks(text, markup string) linkSet {
	var ls linkSet
	seen := make(map[string]bool)
	seenHost := make(map[string]bool)

	add := func(l Link) {
		if seen[l.URL] {
			return
		}
		seen[l.URL] = true
		ls.links = append(ls.links, l)
		if !seenHost[l.Host] {
			seenHost[l.Host] = true
			ls.hosts = append(ls.hosts, l.Host)
		}
	}

	for _, raw := range urlPattern.FindAllString(text, -1) {
		if l, ok := normalizeURL(raw); ok {
			add(l)
		}
	}

	if markup != "" {
		anchors, inline := scanHTML(markup)
		for _, a := range anchors {
			add(a)
			if a.Text != "" {
				ls.anchors = append(ls.anchors, a)
			}
		}
		for _, raw := range inline {
			if l, ok := normalizeURL(raw); ok {
				add(l)
			}
		}
	}
	return ls
}

// scanHTML returns <a href> links with their visible text, plus URLs that
// appear in the visible text itself
func scanHTML(markup string) ([]Link, []string) {
	z := html.NewTokenizer(strings.NewReader(markup))

	var anchors []Link
	var inline []string
	var current *Link
	var text strings.Builder

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if current != nil {
				current.Text = collapseSpace(text.String())
				anchors = append(anchors, *current)
			}
			return anchors, inline
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if atom.Lookup(name) != atom.A || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					if l, ok := normalizeURL(string(val)); ok {
						if current != nil {
							current.Text = collapseSpace(text.String())
							anchors = append(anchors, *current)
						}
						current = &l
						text.Reset()
					}
				}
				if !more {
					break
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.A && current != nil {
				current.Text = collapseSpace(text.String())
				anchors = append(anchors, *current)
				current = nil
				text.Reset()
			}
		case html.TextToken:
			t := string(z.Text())
			if current != nil {
				text.WriteString(t)
			}
			inline = append(inline, urlPattern.FindAllString(t, -1)...)
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sameSite reports whether a and b are the same host or one is a subdomain
// of the other
func sameSite(a, b string) bool {
	a = strings.TrimPrefix(a, "www.")
	b = strings.TrimPrefix(b, "www.")
	return a == b || strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)
}
