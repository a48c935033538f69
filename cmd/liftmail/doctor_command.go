package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"liftmail/internal/mailbox"
	"liftmail/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories and connectivity to every configured service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var dialer mailbox.Dialer
			if cfg.MailboxConfigured() {
				dialer = mailbox.NewDialer(cfg, ctx.cliLogger(cfg, false))
			}
			results := preflight.RunAll(cmd.Context(), cfg, dialer)

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				if !r.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			writeTable(out, []column{{title: "Check"}, {title: "Status", status: true}, {title: "Detail"}}, rows)
			if preflight.Failed(results) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}
