package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

func newMoveCmd() *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "move <id> <bucket>",
		Short: "Move a record to a bucket position",
		Long: `Move a record to another bucket, or reorder it within its bucket.

--index is the destination position, starting at 0. By default the record
goes to the end of the destination bucket.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, dest := args[0], args[1]
			return withApp(cmd.Context(), func(a *app) error {
				req, err := moveRequest(a.engine.Snapshot(), recordID, dest, index, cmd.Flags().Changed("index"))
				if err != nil {
					return err
				}
				snap, err := a.engine.Move(req)
				if err != nil {
					return boardError(err)
				}
				if flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), snap.Change)
				}
				if snap.Change == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already at %s[%d]\n", recordID, dest, req.Destination.Index)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s from %s[%d] to %s[%d]\n", recordID,
					snap.Change.FromBucket, snap.Change.FromIndex, snap.Change.ToBucket, snap.Change.ToIndex)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&index, "index", 0, "destination position (default: end of bucket)")
	return cmd
}

// moveRequest builds the drag result for moving recordID to dest, reading
// the source position from snap. Without an explicit index the record goes
// last.
func moveRequest(snap types.Snapshot, recordID, dest string, index int, explicit bool) (types.MoveRequest, error) {
	src, from, ok := snap.Placement(recordID)
	if !ok {
		return types.MoveRequest{}, userError(fmt.Errorf("%w: record %q", types.ErrNotFound, recordID))
	}
	b, ok := snap.Bucket(dest)
	if !ok {
		return types.MoveRequest{}, userError(fmt.Errorf("%w: bucket %q", types.ErrNotFound, dest))
	}
	if !explicit {
		index = len(b.Items)
		if src == dest {
			index--
		}
	}
	return types.MoveRequest{
		RecordID:    recordID,
		Source:      types.Position{BucketID: src, Index: from},
		Destination: &types.Position{BucketID: dest, Index: index},
	}, nil
}
