package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/config"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/store"
)

// RootOptions holds global flags for all commands, and the configuration
// resolved from them before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config is set by the root command's pre-run hook.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dobby CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dobby",
		Short: "dobby - fluent queries against an isolated SQLite service",
		Long: `Build SQL with a fluent query builder and run it on an execution
service that owns the database.

Settings come from dobby.yaml, .env, DOBBY_* environment variables and the
flags below, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(config.Options{
				File:     opts.ConfigFile,
				EnvFiles: []string{".env"},
				Flags:    cmd.Flags(),
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			opts.Config = cfg

			logger, err := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to configure logging", err)
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default ./dobby.yaml if present)")

	// Bound to config keys by config.Load.
	pf.String("name", config.DefaultName, `storage name (":memory:" for a transient database)`)
	pf.String("driver", store.DriverMattn, "SQLite driver (sqlite3|sqlite)")
	pf.String("schema", "", "CUE schema file (default built-in users/orders schema)")
	pf.Bool("bound-reads", false, "send read values as bound parameters")
	pf.Bool("debug", false, "log every statement and service status")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")
	pf.String("log-format", "text", "log format (text|json)")

	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewPaginateCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
