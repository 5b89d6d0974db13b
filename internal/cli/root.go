// Package cli implements the pipeboard command-line interface.
//
// Exit codes: 0 success, 1 user error (bad input, unknown record, stale
// position), 2 system error (storage, broker, configuration files).
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pipeboard/internal/paths"
	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

var flags rootFlags

// NewRootCmd creates the top-level "pipeboard" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pipeboard",
		Short: "A Kanban pipeline board for sales leads",
		Long: "Pipeboard keeps CRM records in ordered pipeline stages and moves them\n" +
			"between stages. It runs as a CLI or as an HTTP server.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newBoardCmd())
	root.AddCommand(newBucketsCmd())
	root.AddCommand(newTagsCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newUpsertCmd())
	root.AddCommand(newMoveCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newWatchCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pipeboard:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// userError marks err as caused by the caller's input.
func userError(err error) error {
	return &exitError{code: exitUserError, err: err}
}

// sysError marks err as an environment or storage failure.
func sysError(err error) error {
	return &exitError{code: exitSysError, err: err}
}

// boardError classifies an engine error: board operation errors are the
// caller's, anything else is a system failure.
func boardError(err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrConflict),
		errors.Is(err, types.ErrInvalidBucket),
		errors.Is(err, types.ErrValidation):
		return userError(err)
	default:
		return sysError(err)
	}
}

// exitCode returns the exit code for err. Unclassified errors come from
// cobra itself (unknown flags, wrong argument counts) and are user errors.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}
