package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record after confirmation",
		Long: `Delete a record. The record is removed only after you confirm; answering
anything but "y" cancels and leaves the board unchanged. --yes skips the
prompt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				bucketID, rec, err := a.engine.FindRecord(args[0])
				if err != nil {
					return boardError(err)
				}
				pd, err := a.engine.RequestDelete(rec.ID, bucketID, rec.Name)
				if err != nil {
					return boardError(err)
				}

				out := cmd.OutOrStdout()
				if !yes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete %q from %s? [y/N] ", pd.DisplayName, bucketID)) {
					if err := a.engine.CancelDelete(pd.Token); err != nil {
						return boardError(err)
					}
					fmt.Fprintln(out, "Cancelled")
					return nil
				}

				snap, err := a.engine.ConfirmDelete(pd.Token)
				if err != nil {
					return boardError(err)
				}
				if flags.jsonMode {
					return writeJSON(out, snap.Change)
				}
				fmt.Fprintf(out, "Deleted %s (%s)\n", pd.DisplayName, pd.RecordID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm without prompting")
	return cmd
}

// confirm prints prompt and reports whether the answer starts with y.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
