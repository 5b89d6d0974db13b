package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

func newBoardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show the whole board, one column per bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				snap := a.engine.Snapshot()
				if flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), snap)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderBoard(snap, types.NewTagRegistry(a.cfg.Tags)))
				return nil
			})
		},
	}
}

func newBucketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "List the configured buckets with their record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				snap := a.engine.Snapshot()
				if flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), a.engine.Buckets())
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tRECORDS\tDESCRIPTION")
				for _, b := range snap.Buckets {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b.ID, b.Title, len(b.Items), b.Description)
				}
				return tw.Flush()
			})
		},
	}
}

func newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the tag registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := resolveConfigDir()
			if err != nil {
				return sysError(err)
			}
			cfg, err := loadConfig(configDir)
			if err != nil {
				return sysError(err)
			}
			if flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), cfg.Tags)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tCOLOR")
			for _, t := range cfg.Tags {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Label, t.ColorClass)
			}
			return tw.Flush()
		},
	}
}
