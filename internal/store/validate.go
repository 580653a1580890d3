package store

import (
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrInvalidTitle is returned when a bookmark title is empty after trimming.
	ErrInvalidTitle = errors.New("title must not be empty")

	// ErrInvalidURL is returned when a bookmark URL is empty or not absolute.
	ErrInvalidURL = errors.New("url must be absolute, including a scheme and host (e.g. https://example.com)")
)

// maxTitleLen and maxURLLen mirror the bookmarks column widths.
const (
	maxTitleLen = 512
	maxURLLen   = 2048
)

// ValidateTitle checks that title is non-empty once trimmed.
func ValidateTitle(title string) error {
	t := strings.TrimSpace(title)
	if t == "" || len(t) > maxTitleLen {
		return ErrInvalidTitle
	}
	return nil
}

// ValidateURL checks that raw, once trimmed, parses as an absolute URL with
// both a scheme and a host.
func ValidateURL(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) > maxURLLen {
		return ErrInvalidURL
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
