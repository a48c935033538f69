package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"liftmail/internal/api"
	"liftmail/internal/daemonrun"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Poll the mailbox once and process unread messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), verbose, func(rt *daemonrun.Runtime) error {
				result, err := rt.Poller.RunOnce(cmd.Context())
				if err != nil {
					return fmt.Errorf("check mailbox: %w", err)
				}
				resp := api.FromCheckResult(result)
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Processed: %d\n", resp.Processed)
				fmt.Fprintf(out, "Succeeded: %d\n", resp.Succeeded)
				fmt.Fprintf(out, "Skipped:   %d\n", resp.Skipped)
				fmt.Fprintf(out, "Failed:    %d\n", resp.Failed)
				for _, msg := range resp.Errors {
					fmt.Fprintf(out, "  - %s\n", msg)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warn")
	return cmd
}
