package ctl

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.backend.Migrate == nil {
				return errors.New("migrations are not available")
			}
			ctx := cmd.Context()

			if err := a.backend.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			var version int64
			if a.backend.MigrationVersion != nil {
				v, err := a.backend.MigrationVersion(ctx)
				if err != nil {
					return fmt.Errorf("read migration version: %w", err)
				}
				version = v
			}

			if a.printer.IsJSON() {
				return a.printer.JSON(map[string]int64{"version": version})
			}
			a.printer.Success("Database is at version %d", version)
			return nil
		},
	}
}
