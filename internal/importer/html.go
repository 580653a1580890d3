// Package importer reads bookmarks exported by browsers.
package importer

import (
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Entry is one bookmark found in an export file.
type Entry struct {
	Title string
	URL   string
	// Folder is the slash-joined folder path, empty at the root.
	Folder string
	// AddedAt is the ADD_DATE attribute, zero when absent.
	AddedAt time.Time
}

// ParseHTML reads a Netscape bookmark file, the format every major browser
// exports. Anchors without an HREF are skipped; an empty title falls back to
// the URL. Folder structure is flattened into Entry.Folder.
func ParseHTML(r io.Reader) ([]Entry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var (
		entries []Entry
		folders []string
		// pending is an H3 whose DL has not been seen yet.
		pending string
		walk    func(*html.Node)
	)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "h3":
				pending = textContent(n)
				return
			case "a":
				href := strings.TrimSpace(attr(n, "href"))
				if href == "" {
					return
				}
				title := textContent(n)
				if title == "" {
					title = href
				}
				e := Entry{Title: title, URL: href, Folder: strings.Join(folders, "/")}
				if ts, err := strconv.ParseInt(attr(n, "add_date"), 10, 64); err == nil && ts > 0 {
					e.AddedAt = time.Unix(ts, 0).UTC()
				}
				entries = append(entries, e)
				return
			case "dl":
				pushed := pending != ""
				if pushed {
					folders = append(folders, pending)
					pending = ""
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
				if pushed {
					folders = folders[:len(folders)-1]
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return entries, nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(b.String())
}

// attr looks up an attribute case-insensitively.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
