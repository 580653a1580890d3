package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joestump/joe-marks/internal/bookmarks"
)

type exportRecord struct {
	bookmarks.Bookmark `yaml:",inline"`
	Favicon            string `json:"favicon,omitempty" yaml:"favicon,omitempty"`
}

func newExportCmd() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all bookmarks as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want json or yaml)", format)
			}

			sess, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer sess.Close()

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return encodeExport(w, sess.store.Items(), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func encodeExport(w io.Writer, items []bookmarks.Bookmark, format string) error {
	records := make([]exportRecord, 0, len(items))
	for _, b := range items {
		icon, _ := bookmarks.FaviconURL(b.URL)
		records = append(records, exportRecord{Bookmark: b, Favicon: icon})
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
}
