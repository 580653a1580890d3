package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joestump/joe-marks/internal/bookmarks"
	"github.com/joestump/joe-marks/internal/logger"
)

func newRmCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), bookmarks.MsgConfirmDelete) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
				return nil
			}

			sess, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer sess.Close()

			err = sess.store.Delete(cmd.Context(), args[0])
			var reqErr *bookmarks.RequestError
			switch {
			case errors.As(err, &reqErr):
				sess.log.Debug("delete failed", logger.Error(err))
				return errors.New(bookmarks.MsgDeleteFailed)
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm asks a yes/no question; anything but y or yes is no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
