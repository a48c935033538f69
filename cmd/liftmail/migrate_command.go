package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"liftmail/internal/store"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.DatabasePath())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := store.Migrate(cmd.Context(), db, cfg.MigrationLockPath()); err != nil {
				return err
			}
			versions, err := store.AppliedVersions(cmd.Context(), db)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database: %s\n", cfg.DatabasePath())
			for _, v := range versions {
				fmt.Fprintf(out, "  applied %s\n", v)
			}
			return nil
		},
	}
}
