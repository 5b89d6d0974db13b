package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize pipeboard configuration and storage",
		Long: "Create the configuration directory with a default config.yaml, then\n" +
			"attach the configured backend once so its storage exists.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := resolveConfigDir()
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}

	var dataDir, backend string
	var revision int64
	err = withApp(cmd.Context(), func(a *app) error {
		dataDir = a.cfg.DataDir
		backend = a.cfg.Backend
		revision = a.engine.Revision()
		return nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Pipeboard initialized successfully")
	fmt.Fprintln(out, "  config: ", configDir)
	fmt.Fprintln(out, "  backend:", backend)
	if backend == types.BackendSQLite {
		fmt.Fprintln(out, "  data:   ", dataDir)
	}
	fmt.Fprintln(out, "  revision:", revision)
	return nil
}
