package main

import (
	"bytes"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const clearScreen = "\033[H\033[2J"

func newWatchCmd() *cobra.Command {
	var (
		filter string
		fuzzy  bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the bookmark list and redraw it on every change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := openSession(ctx, true)
			if err != nil {
				return err
			}
			defer sess.Close()

			sess.store.SetFuzzy(fuzzy)
			sess.store.SetFilter(filter)
			st := defaultStyles()
			out := cmd.OutOrStdout()

			draw := func() {
				var buf bytes.Buffer
				buf.WriteString(clearScreen)
				renderList(&buf, viewOf(sess.store, filter, false), st)
				_, _ = out.Write(buf.Bytes())
			}

			draw()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-sess.store.Changes():
					draw()
				}
			}
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "only show bookmarks whose title or URL contains this text")
	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "fuzzy-match the filter, best match first")
	return cmd
}
