package main

import (
	"github.com/spf13/cobra"

	"liftmail/internal/daemonrun"
)

func newRootCommand(buildOpts ...daemonrun.BuildOption) *cobra.Command {
	var configFlag string
	var envFlag string

	ctx := newCommandContext(&configFlag, &envFlag, buildOpts)

	rootCmd := &cobra.Command{
		Use:           "liftmail",
		Short:         "Email ingestion for lift videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.loadEnv(); err != nil {
				return err
			}
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&envFlag, "env-file", "", "Load environment variables from this file (default .env when present)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newParseCommand(ctx))
	rootCmd.AddCommand(newReplayCommand(ctx))
	rootCmd.AddCommand(newLedgerCommand(ctx))
	rootCmd.AddCommand(newCompetitionCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
