package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joestump/joe-marks/internal/bookmarks"
	"github.com/joestump/joe-marks/internal/importer"
	"github.com/joestump/joe-marks/internal/logger"
)

func newImportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <bookmarks.html>",
		Short: "Import a browser bookmark export (Netscape HTML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			entries, err := importer.ParseHTML(f)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if dryRun {
				for _, e := range entries {
					fmt.Fprintf(out, "%s\t%s\t%s\n", e.Folder, e.Title, e.URL)
				}
				fmt.Fprintf(out, "%d bookmarks found\n", len(entries))
				return nil
			}

			sess, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer sess.Close()

			existing := make(map[string]bool)
			for _, b := range sess.store.Items() {
				existing[b.URL] = true
			}

			var added, skipped, failed int
			for _, e := range entries {
				if existing[e.URL] {
					skipped++
					continue
				}
				_, err := sess.store.Create(cmd.Context(), e.Title, e.URL)
				var verr *bookmarks.ValidationError
				switch {
				case errors.As(err, &verr):
					sess.log.Debug("skipping bookmark", logger.String("url", e.URL), logger.Error(err))
					skipped++
				case err != nil:
					sess.log.Warn("importing bookmark", logger.String("url", e.URL), logger.Error(err))
					failed++
				default:
					existing[e.URL] = true
					added++
				}
			}

			fmt.Fprintf(out, "Imported %d, skipped %d, failed %d\n", added, skipped, failed)
			if failed > 0 {
				return fmt.Errorf("%d bookmarks could not be imported", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be imported without contacting the server")
	return cmd
}
