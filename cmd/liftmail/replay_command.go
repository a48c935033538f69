package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"liftmail/internal/daemonrun"
	"liftmail/internal/ingest"
)

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "replay <file.eml>...",
		Short: "Run archived messages through the pipeline (use - for stdin)",
		Long: "Replay feeds raw RFC 822 messages through the same pipeline the poller uses.\n" +
			"Messages that already succeeded are skipped by the ledger; failed ones are retried.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), verbose, func(rt *daemonrun.Runtime) error {
				out := cmd.OutOrStdout()
				failed := 0
				for _, path := range args {
					raw, err := readMessage(cmd, path)
					if err != nil {
						return err
					}
					res := rt.Processor.Process(cmd.Context(), raw)
					fmt.Fprintf(out, "%s: %s\n", path, res.Summary())
					if res.Outcome == ingest.OutcomeFailed {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d messages failed", failed, len(args))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warn")
	return cmd
}

func readMessage(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return raw, nil
}
