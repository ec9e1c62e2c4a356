package detectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		host string
		ok   bool
	}{
		{"HTTP://Example.COM/", "http://example.com", "example.com", true},
		{"https://example.com:443/a?b=1#frag", "https://example.com/a?b=1", "example.com", true},
		{"http://example.com:8080/x", "http://example.com:8080/x", "example.com", true},
		{"www.Example.com/path).", "http://www.example.com/path", "www.example.com", true},
		{"http://example.com./", "http://example.com", "example.com", true},
		{"http://аpple.com/x", "http://xn--pple-43d.com/x", "аpple.com", true},
		{"https://MÜNCHEN.de:443/", "https://xn--mnchen-3ya.de", "münchen.de", true},
		{"http://xn--pple-43d.com/x", "http://xn--pple-43d.com/x", "xn--pple-43d.com", true},
		{"ftp://example.com/file", "", "", false},
		{"http://", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			l, ok := normalizeURL(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, l.URL)
			assert.Equal(t, tt.host, l.Host)
		})
	}
}

func TestExtractLinksDeduplicates(t *testing.T) {
	ls := extractLinks(
		"a https://example.com/ b https://EXAMPLE.com c https://example.com/#x",
		`<a href="https://example.com">dup</a><a href="https://other.test/p">Other</a> text https://third.test`,
	)

	var urls []string
	for _, l := range ls.links {
		urls = append(urls, l.URL)
	}
	assert.Equal(t, []string{"https://example.com", "https://other.test/p", "https://third.test"}, urls)
	assert.Equal(t, []string{"example.com", "other.test", "third.test"}, ls.hosts)
	assert.Len(t, ls.anchors, 2)
}

func TestScanHTMLUnclosedAnchor(t *testing.T) {
	anchors, inline := scanHTML(`<a href="http://a.test/">first <b>bold</b> <a href="http://b.test/">second`)
	if assert.Len(t, anchors, 2) {
		assert.Equal(t, "first bold", anchors[0].Text)
		assert.Equal(t, "second", anchors[1].Text)
	}
	assert.Empty(t, inline)
}

func TestSameSite(t *testing.T) {
	assert.True(t, sameSite("www.example.com", "example.com"))
	assert.True(t, sameSite("login.example.com", "example.com"))
	assert.False(t, sameSite("example.com.evil.test", "example.com"))
	assert.False(t, sameSite("evil.test", "example.com"))
}
