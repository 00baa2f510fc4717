// Package cli implements the stockroom command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/stockroom/internal/config"
	"github.com/mesh-intelligence/stockroom/internal/logger"
	"github.com/mesh-intelligence/stockroom/internal/paths"
	"github.com/mesh-intelligence/stockroom/internal/schema"
	"github.com/mesh-intelligence/stockroom/internal/store"
	"github.com/mesh-intelligence/stockroom/pkg/types"
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
	backend   string
	jsonMode  bool
}

var flags rootFlags

// NewRootCmd creates the top-level "stockroom" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stockroom",
		Short:         "Inventory with user-defined categories and item groups",
		Long:          "Stockroom keeps an inventory whose fields are defined at runtime: categories\nare typed characteristics, groups bundle them, and items are validated against\ntheir group.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: nearest .stockroom or the user config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.stockroom-db)")
	root.PersistentFlags().StringVar(&flags.backend, "backend", "", "storage backend: sqlite, postgres, redis or memory (default from config.yaml)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newCategoryCmd())
	root.AddCommand(newGroupCmd())
	root.AddCommand(newItemCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newUndoCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newSummaryCmd())
	root.AddCommand(newServeCmd())

	return root
}

// Execute runs the root command and exits with the code the error maps to.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(exitCode(err))
}

// exitErr carries the process exit code for an error.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }
func (e *exitErr) Unwrap() error { return e.err }

func userError(err error) error { return &exitErr{code: exitUserError, err: err} }
func sysError(err error) error  { return &exitErr{code: exitSysError, err: err} }

// exitCode maps err to a process exit code. Persistence failures are
// system errors; everything the user can fix is a user error.
func exitCode(err error) int {
	var ee *exitErr
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, types.ErrPersistence) {
		return exitSysError
	}
	return exitUserError
}

// app is an opened store with everything needed to close it.
type app struct {
	cfg    types.Config
	store  *store.Store
	logger *zap.Logger
	closer types.Closer
}

func (a *app) Close() error {
	defer a.logger.Sync() //nolint:errcheck
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// loadConfig resolves directories and flags into a validated config.
func loadConfig() (types.Config, string, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, "", sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return types.Config{}, "", sysError(err)
	}
	if flags.backend != "" {
		cfg.Backend = flags.backend
	}
	cfg.DataDir, err = paths.ResolveDataDir(flags.dataDir, cfg.DataDir, configDir)
	if err != nil {
		return types.Config{}, "", sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, "", userError(err)
	}
	return cfg, configDir, nil
}

// openApp loads the config, opens the configured backend and hydrates a
// store from it. Callers must Close the app.
func openApp(ctx context.Context) (*app, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return nil, userError(err)
	}

	port, closer, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, sysError(err)
	}
	s := store.New(schema.NewRegistry(port, schema.WithLogger(log)), port, store.WithLogger(log))
	if err := s.Load(ctx); err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, sysError(fmt.Errorf("load store: %w", err))
	}
	return &app{cfg: cfg, store: s, logger: log, closer: closer}, nil
}

// withApp opens the store, runs fn and closes the store.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
