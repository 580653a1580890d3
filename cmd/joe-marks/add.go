package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joestump/joe-marks/internal/bookmarks"
	"github.com/joestump/joe-marks/internal/logger"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <title> <url>",
		Short: "Add a bookmark",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer sess.Close()

			var form bookmarks.Form
			form.SetTitle(args[0])
			form.SetURL(args[1])
			b, err := form.Submit(cmd.Context(), sess.store)
			if err != nil {
				if msg := form.Message(); msg != "" {
					sess.log.Debug("add failed", logger.Error(err))
					return errors.New(msg)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", b.Title, b.ID)
			return nil
		},
	}
}
