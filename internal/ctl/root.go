// Package ctl implements mediactl, the operator CLI for the media worker.
package ctl

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/mediaflow/internal/ctl/output"
	"github.com/abdul-hamid-achik/mediaflow/internal/db"
	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/queue"
)

// Backend is what the commands operate on. Fields a command does not need
// may be nil.
type Backend struct {
	Store     db.Querier
	Enqueuer  events.Enqueuer
	Queue     queue.Queue
	RawBucket string

	Migrate          func(ctx context.Context) error
	MigrationVersion func(ctx context.Context) (int64, error)

	Close func()
}

// Opener connects the backend. It runs once, before the first command.
type Opener func(ctx context.Context) (*Backend, error)

type app struct {
	open       Opener
	backend    *Backend
	printer    *output.Printer
	jsonOutput bool
	quietMode  bool
	noColor    bool
}

// NewRootCmd builds the mediactl command tree.
func NewRootCmd(open Opener, version string) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "mediactl",
		Short: "Operate the media processing worker",
		Long: `mediactl inspects and repairs media assets processed by the worker.

Examples:
  mediactl migrate                          # Apply database migrations
  mediactl status lessons/L1/intro.mp4      # Show one asset
  mediactl list --status failed             # List failed assets
  mediactl redrive --failed                 # Retry every failed asset`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.printer = output.New(
				output.WithJSON(a.jsonOutput),
				output.WithQuiet(a.quietMode),
				output.WithNoColor(a.noColor),
				output.WithOutput(cmd.OutOrStdout()),
				output.WithErrOutput(cmd.ErrOrStderr()),
			)
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			backend, err := a.open(cmd.Context())
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			a.backend = backend
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.backend != nil && a.backend.Close != nil {
				a.backend.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output as JSON (for scripting)")
	root.PersistentFlags().BoolVar(&a.quietMode, "quiet", false, "Suppress non-error output")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	root.SetVersionTemplate("mediactl version {{.Version}}\n")

	root.AddCommand(
		a.migrateCmd(),
		a.statusCmd(),
		a.listCmd(),
		a.statsCmd(),
		a.redriveCmd(),
	)
	return root
}
