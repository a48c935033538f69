package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"liftmail/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines     int
		follow    bool
		component string
		uid       uint32
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the current daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logs.CurrentPath(cfg.Paths.LogDir)
			filter := logs.Filter{Component: component, MessageUID: uid}

			tail, offset, err := logs.Last(path, lines, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tail) == 0 && !follow {
				fmt.Fprintf(out, "No log lines in %s\n", path)
				return nil
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, interval, filter, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&component, "component", "", "Only show lines from this component (poller, ingest, daemon, ...)")
	cmd.Flags().Uint32Var(&uid, "uid", 0, "Only show lines for this mailbox message UID")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "Polling interval when following")
	return cmd
}
