package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockroom/internal/config"
	"github.com/mesh-intelligence/stockroom/internal/paths"
	"github.com/mesh-intelligence/stockroom/internal/sqlite"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the config file and data directory",
		Long: `Init writes config.yaml into the config directory and, for the sqlite
backend, creates the data directory with its JSONL files and database.
Existing files are left alone, so running init twice is harmless.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	if _, err := paths.EnsureDir(configDir); err != nil {
		return sysError(fmt.Errorf("create config dir: %w", err))
	}
	backend := flags.backend
	if backend == "" {
		backend = types.BackendSQLite
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, "", configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	wrote, err := config.WriteInitial(configDir, backend, dataDir)
	if err != nil {
		return sysError(fmt.Errorf("write config: %w", err))
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Backend == types.BackendSQLite {
		b := sqlite.NewBackend()
		if err := b.Attach(cfg); err != nil {
			return sysError(fmt.Errorf("initialize data dir: %w", err))
		}
		if err := b.Detach(); err != nil {
			return sysError(fmt.Errorf("detach: %w", err))
		}
	}

	if flags.jsonMode {
		return printJSON(cmd, map[string]any{
			"config_dir":     configDir,
			"data_dir":       cfg.DataDir,
			"backend":        cfg.Backend,
			"config_written": wrote,
		})
	}
	out := cmd.OutOrStdout()
	if wrote {
		fmt.Fprintf(out, "Wrote %s/%s\n", configDir, config.FileName)
	}
	fmt.Fprintf(out, "Initialized %s backend in %s\n", cfg.Backend, cfg.DataDir)
	return nil
}
