package bookmarks

import (
	"net/url"
	"strings"
)

const faviconService = "https://www.google.com/s2/favicons"

// FaviconURL returns an icon URL for raw's host. ok is false when raw does not
// parse or has no host, in which case the caller shows a fallback glyph.
func FaviconURL(raw string) (icon string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	q := url.Values{}
	q.Set("domain", u.Hostname())
	q.Set("sz", "128")
	return faviconService + "?" + q.Encode(), true
}
