// Package cli holds the awful command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"awful/internal/app"
	"awful/internal/config"
	"awful/internal/tenant"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type rootOptions struct {
	cfgFile string
	verbose bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "awful",
		Short: "Block storage and form validation",
		Long: `awful stores per-owner trees of typed content blocks for a
multi-tenant site and validates submitted trees before saving them.

It can serve an HTTP API, an MCP server on stdio, and a scheduled
sweeper that removes blocks no longer reachable from their root.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "config.toml", "config file path")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newInitCmd(opts),
		newInstallCmd(opts),
		newUninstallCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newSweepCmd(opts),
		newPruneCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "awful %s\n", Version)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildTime)
		},
	}
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if _, err := os.Stat(o.cfgFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'awful init' first)", o.cfgFile)
	}
	cfg, err := config.LoadConfig(o.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func (o *rootOptions) openApp(ctx context.Context, appOpts app.Options) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, appOpts)
}

func parseTenants(args []string) ([]tenant.ID, error) {
	out := make([]tenant.ID, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid tenant %q", arg)
		}
		out = append(out, tenant.ID(n))
	}
	return out, nil
}
