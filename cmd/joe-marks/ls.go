package main

import (
	"github.com/spf13/cobra"
)

func newLsCmd() *cobra.Command {
	var (
		filter string
		fuzzy  bool
		long   bool
	)
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List bookmarks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer sess.Close()

			sess.store.SetFuzzy(fuzzy)
			sess.store.SetFilter(filter)
			renderList(cmd.OutOrStdout(), viewOf(sess.store, filter, long), defaultStyles())
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "only show bookmarks whose title or URL contains this text")
	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "fuzzy-match the filter, best match first")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "also show favicon URLs")
	return cmd
}
