package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pipeboard/internal/logging"
	"github.com/mesh-intelligence/pipeboard/internal/queue"
	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print board changes published to RabbitMQ",
		Long: `Consume the change queue and print each board change as it arrives.
Requires amqp.url (or PIPEBOARD_AMQP_URL). Each change is acknowledged once
printed; with --json changes are printed one JSON object per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := resolveConfigDir()
			if err != nil {
				return sysError(err)
			}
			cfg, err := loadConfig(configDir)
			if err != nil {
				return sysError(err)
			}
			if cfg.AMQP.URL == "" {
				return userError(errors.New("amqp.url is not configured"))
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return sysError(err)
			}
			defer logger.Sync()

			conn, err := queue.Dial(cfg.AMQP.URL)
			if err != nil {
				return sysError(err)
			}
			defer conn.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			c := queue.NewConsumer(conn.Channel(), "pipeboard-watch", logger)
			err = c.Watch(ctx, func(_ context.Context, ch types.Change) error {
				if flags.jsonMode {
					line, err := json.Marshal(ch)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, string(line))
					return nil
				}
				fmt.Fprintln(out, describeChange(ch))
				return nil
			})
			if err != nil {
				return sysError(err)
			}
			return nil
		},
	}
}

// describeChange renders a change as one line of text.
func describeChange(c types.Change) string {
	at := c.At.Local().Format("15:04:05")
	switch c.Op {
	case types.OpCreate:
		return fmt.Sprintf("%s r%d create %s in %s[%d]", at, c.Revision, c.RecordID, c.ToBucket, c.ToIndex)
	case types.OpDelete:
		return fmt.Sprintf("%s r%d delete %s from %s[%d]", at, c.Revision, c.RecordID, c.FromBucket, c.FromIndex)
	case types.OpMove:
		return fmt.Sprintf("%s r%d move %s %s[%d] -> %s[%d]", at, c.Revision, c.RecordID, c.FromBucket, c.FromIndex, c.ToBucket, c.ToIndex)
	default:
		return fmt.Sprintf("%s r%d %s %s", at, c.Revision, c.Op, c.RecordID)
	}
}
