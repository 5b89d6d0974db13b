package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pipeboard/internal/board"
	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

func newListCmd() *cobra.Command {
	var q types.RecordQuery
	var priority string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records with optional filters, sorting and paging",
		Long: `List records across the board.

Filters are ANDed together. --text matches name, phone, notes and products
case-insensitively. Without --sort records keep board order.

Examples:
  pipeboard list --bucket demo
  pipeboard list --priority HIGH --sort demoDate
  pipeboard list --text olla --page 2 --per-page 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Priority = types.Priority(priority)
			return withApp(cmd.Context(), func(a *app) error {
				page, err := board.Query(a.engine.Snapshot(), q)
				if err != nil {
					return boardError(err)
				}
				if flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), page)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tPHONE\tBUCKET\tPRIORITY\tDEMO")
				for _, r := range page.Records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Phone, r.Status, r.Priority, r.DemoDate)
				}
				if err := tw.Flush(); err != nil {
					return sysError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d of %d records\n", page.Page, len(page.Records), page.Total)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&q.BucketID, "bucket", "", "only records in this bucket")
	f.StringVar(&priority, "priority", "", "only records with this priority (HIGH, MEDIUM, LOW)")
	f.StringVar(&q.Tag, "tag", "", "only records carrying this tag id")
	f.StringVar(&q.Text, "text", "", "case-insensitive text search")
	f.StringVar(&q.SortBy, "sort", "", "sort key: name, priority, lastContact, demoDate, deliveryDate, createdAt")
	f.BoolVar(&q.Desc, "desc", false, "sort descending")
	f.IntVar(&q.Page, "page", 1, "page number, starting at 1")
	f.IntVar(&q.PerPage, "per-page", types.DefaultPerPage, "records per page")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Display a record with full details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				bucketID, rec, err := a.engine.FindRecord(args[0])
				if err != nil {
					return boardError(err)
				}
				if flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), rec)
				}
				writeRecord(cmd.OutOrStdout(), bucketID, rec, types.NewTagRegistry(a.cfg.Tags))
				return nil
			})
		},
	}
}
