package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/joestump/joe-marks/internal/bookmarks"
)

type styles struct {
	Header  lipgloss.Style
	Title   lipgloss.Style
	URL     lipgloss.Style
	Meta    lipgloss.Style
	Pending lipgloss.Style
	Empty   lipgloss.Style
	Error   lipgloss.Style
}

func defaultStyles() styles {
	subtle := lipgloss.AdaptiveColor{Light: "#888888", Dark: "#606060"}
	accent := lipgloss.AdaptiveColor{Light: "#4A7070", Dark: "#5F8787"}
	return styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		Title:   lipgloss.NewStyle().Bold(true),
		URL:     lipgloss.NewStyle().Foreground(accent),
		Meta:    lipgloss.NewStyle().Foreground(subtle),
		Pending: lipgloss.NewStyle().Foreground(subtle).Italic(true),
		Empty:   lipgloss.NewStyle().Foreground(subtle).Italic(true),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#AF5F5F")),
	}
}

// listView is everything needed to draw the bookmark list once.
type listView struct {
	Items     []bookmarks.Bookmark
	Total     int
	Filter    string
	IsPending func(id string) bool
	Err       error
	Long      bool
}

func renderList(w io.Writer, v listView, st styles) {
	header := fmt.Sprintf("Bookmarks (%d)", v.Total)
	if strings.TrimSpace(v.Filter) != "" {
		header = fmt.Sprintf("Bookmarks (%d of %d matching %q)", len(v.Items), v.Total, v.Filter)
	}
	fmt.Fprintln(w, st.Header.Render(header))

	if v.Err != nil {
		fmt.Fprintln(w, st.Error.Render(v.Err.Error()))
	}
	if len(v.Items) == 0 {
		msg := "No bookmarks yet. Add one with `joe-marks add <title> <url>`."
		if v.Total > 0 {
			msg = "Nothing matches the filter."
		}
		fmt.Fprintln(w, st.Empty.Render(msg))
		return
	}

	for _, b := range v.Items {
		title := st.Title.Render(b.Title)
		if v.IsPending != nil && v.IsPending(b.ID) {
			title += " " + st.Pending.Render("(deleting…)")
		}
		fmt.Fprintln(w, title)
		fmt.Fprintln(w, "  "+st.URL.Render(b.URL))
		meta := fmt.Sprintf("  %s · %s", b.ID, b.CreatedAt.Local().Format(time.DateTime))
		fmt.Fprintln(w, st.Meta.Render(meta))
		if v.Long {
			if icon, ok := bookmarks.FaviconURL(b.URL); ok {
				fmt.Fprintln(w, st.Meta.Render("  icon: "+icon))
			}
		}
	}
}

// view applies the store's filter settings for rendering.
func viewOf(s *bookmarks.SyncStore, filter string, long bool) listView {
	return listView{
		Items:     s.View(),
		Total:     len(s.Items()),
		Filter:    filter,
		IsPending: s.IsPending,
		Err:       s.Err(),
		Long:      long,
	}
}
