package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"liftmail/internal/api"
	"liftmail/internal/mailparse"
)

func newParseCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "parse <text>...",
		Short: "Dry-run the submission tag parser",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			parser := mailparse.NewTagParser(cfg.Ingest.TagKeyword, cfg.Ingest.DefaultLift)
			resp := api.ParseTest(parser, strings.Join(args, " "))
			if jsonOut {
				return writeJSON(cmd, resp)
			}
			if !resp.Success {
				return errors.New(resp.Error)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Weight: %g kg\n", resp.Parsed.WeightKg)
			fmt.Fprintf(out, "Lift:   %s\n", resp.Parsed.LiftType)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")
	return cmd
}
