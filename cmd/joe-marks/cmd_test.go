package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joestump/joe-marks/internal/bookmarks"
)

var sample = []bookmarks.Bookmark{
	{ID: "b2", OwnerID: "u1", Title: "Go", URL: "https://go.dev/doc", CreatedAt: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)},
	{ID: "b1", OwnerID: "u1", Title: "Example", URL: "https://example.com", CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
}

func TestEncodeExport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := encodeExport(&buf, sample, "json"); err != nil {
		t.Fatalf("encodeExport: %v", err)
	}

	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0]["id"] != "b2" || got[0]["title"] != "Go" {
		t.Errorf("first = %v", got[0])
	}
	if got[0]["favicon"] != "https://www.google.com/s2/favicons?domain=go.dev&sz=128" {
		t.Errorf("favicon = %v", got[0]["favicon"])
	}
}

func TestEncodeExport_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := encodeExport(&buf, sample, "yaml"); err != nil {
		t.Fatalf("encodeExport: %v", err)
	}

	var got []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, buf.String())
	}
	if len(got) != 2 || got[1]["url"] != "https://example.com" || got[1]["owner_id"] != "u1" {
		t.Errorf("yaml = %v", got)
	}
}

func TestEncodeExport_EmptyIsList(t *testing.T) {
	var buf bytes.Buffer
	if err := encodeExport(&buf, nil, "json"); err != nil {
		t.Fatalf("encodeExport: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty export = %q, want []", got)
	}
}

func TestRenderList(t *testing.T) {
	var buf bytes.Buffer
	renderList(&buf, listView{
		Items:     sample,
		Total:     2,
		IsPending: func(id string) bool { return id == "b1" },
		Err:       errors.New("change stream lost"),
		Long:      true,
	}, defaultStyles())
	out := buf.String()

	for _, want := range []string{"Bookmarks (2)", "Go", "https://go.dev/doc", "b2", "(deleting…)", "change stream lost", "favicons?domain=example.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Go") > strings.Index(out, "Example") {
		t.Error("items not rendered in order")
	}
	if strings.Count(out, "(deleting…)") != 1 {
		t.Error("only the pending bookmark should be marked")
	}
}

func TestRenderList_Empty(t *testing.T) {
	tests := []struct {
		name string
		view listView
		want string
	}{
		{"no bookmarks", listView{}, "No bookmarks yet"},
		{"filtered out", listView{Total: 3, Filter: "zzz"}, "Nothing matches the filter."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			renderList(&buf, tt.view, defaultStyles())
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yep\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := confirm(strings.NewReader(tt.in), &out, bookmarks.MsgConfirmDelete); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if !strings.Contains(out.String(), bookmarks.MsgConfirmDelete) {
			t.Errorf("prompt = %q", out.String())
		}
	}
}
