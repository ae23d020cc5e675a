package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"awful/internal/app"
	"awful/internal/config"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a default configuration file to the path given by --config.

The default configuration uses a SQLite database in data/ next to the
configuration file, an
in-process cache and the built-in block types.

Example:
  awful init --config awful.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.cfgFile); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to override", opts.cfgFile)
			}
			base := filepath.Dir(opts.cfgFile)
			cfg := config.DefaultConfig()
			cfg.Database.Path = filepath.Join(base, cfg.Database.Path)
			cfg.Importer.Dir = filepath.Join(base, cfg.Importer.Dir)
			if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
				return fmt.Errorf("creating data directory: %w", err)
			}
			if err := config.WriteConfigFile(opts.cfgFile, cfg); err != nil {
				return fmt.Errorf("writing config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", opts.cfgFile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "override an existing configuration")
	return cmd
}

func newInstallCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install [tenant...]",
		Short: "Create or migrate block tables",
		Long:  "Create or migrate the block tables of each tenant given, or of the primary tenant when none are.",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenants, err := parseTenants(args)
			if err != nil {
				return err
			}
			a, err := opts.openApp(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())
			return a.Install(cmd.Context(), a.Tenants(tenants))
		},
	}
}

func newUninstallCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall tenant...",
		Short: "Drop block tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenants, err := parseTenants(args)
			if err != nil {
				return err
			}
			a, err := opts.openApp(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())
			return a.Uninstall(cmd.Context(), tenants)
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted. The sweeper and the import
directory watcher also run when enabled in the configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := opts.openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())
			return a.Serve(ctx)
		},
	}
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			// stdout carries the protocol.
			var appOpts app.Options
			if strings.EqualFold(cfg.Logging.Output, "stdout") {
				appOpts.LogWriter = os.Stderr
			}
			a, err := app.New(cmd.Context(), cfg, appOpts)
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())
			return a.ServeMCP()
		},
	}
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep [tenant...]",
		Short: "Delete unreachable blocks once",
		Long:  "Delete unreachable blocks of every owner in each tenant given, or in the configured sweeper tenants when none are.",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenants, err := parseTenants(args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := opts.openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())
			if len(tenants) == 0 {
				tenants = a.Config.Sweeper.Tenants
			}
			results, sweepErr := a.Sweeper.Sweep(ctx, a.Tenants(tenants))
			if err := writeJSON(cmd, results); err != nil {
				return err
			}
			return sweepErr
		},
	}
}

func newPruneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune tenant kind [id]",
		Short: "Delete one owner's unreachable blocks",
		Example: `  awful prune 1 post 42
  awful prune 2 site`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := "0"
			if len(args) == 3 {
				id = args[2]
			}
			a, err := opts.openApp(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			owner, err := a.Blocks.ParseOwner(args[0], args[1], id)
			if err != nil {
				return err
			}
			pruned, err := a.Blocks.Prune(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]any{"owner": owner.String(), "pruned": pruned})
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
