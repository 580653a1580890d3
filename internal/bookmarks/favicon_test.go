package bookmarks

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestFaviconURL(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://go.dev/blog", "https://www.google.com/s2/favicons?domain=go.dev&sz=128", true},
		{"http://example.com:8080/x?y=1", "https://www.google.com/s2/favicons?domain=example.com&sz=128", true},
		{"  https://news.ycombinator.com  ", "https://www.google.com/s2/favicons?domain=news.ycombinator.com&sz=128", true},
		{"not-a-url", "", false},
		{"", "", false},
		{"://broken", "", false},
	}
	for _, tt := range tests {
		got, ok := FaviconURL(tt.in)
		assert.Equal(t, ok, tt.wantOK, tt.in)
		assert.Equal(t, got, tt.want, tt.in)
	}
}
