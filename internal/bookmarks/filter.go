package bookmarks

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Filter returns the bookmarks whose title or url contains text, ignoring
// case, in their original order. A blank text returns items unchanged.
func Filter(items []Bookmark, text string) []Bookmark {
	if strings.TrimSpace(text) == "" {
		return items
	}
	needle := strings.ToLower(text)
	out := make([]Bookmark, 0, len(items))
	for _, b := range items {
		if strings.Contains(strings.ToLower(b.Title), needle) ||
			strings.Contains(strings.ToLower(b.URL), needle) {
			out = append(out, b)
		}
	}
	return out
}

// fuzzySource implements fuzzy.Source over title and url.
type fuzzySource []Bookmark

func (s fuzzySource) String(i int) string { return s[i].Title + " " + s[i].URL }
func (s fuzzySource) Len() int            { return len(s) }

// FuzzyFilter ranks bookmarks by fuzzy match against "title url", best score
// first. A blank text returns items unchanged.
func FuzzyFilter(items []Bookmark, text string) []Bookmark {
	text = strings.TrimSpace(text)
	if text == "" {
		return items
	}
	matches := fuzzy.FindFrom(text, fuzzySource(items))
	out := make([]Bookmark, len(matches))
	for i, m := range matches {
		out[i] = items[m.Index]
	}
	return out
}
