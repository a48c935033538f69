package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"liftmail/internal/api"
	"liftmail/internal/daemonrun"
	"liftmail/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect processing records",
	}
	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerShowCommand(ctx))
	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processing records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd.Context(), false, func(rt *daemonrun.Runtime) error {
				records, err := rt.Ledger.List(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.FromRecords(records))
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No processing records")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						rec.ID,
						string(rec.Status),
						strconv.Itoa(rec.Attempts),
						rec.Sender,
						rec.Subject,
						rec.UpdatedAt.Local().Format(time.DateTime),
						rec.Error,
					})
				}
				writeTable(out, []column{
					{title: "ID"},
					{title: "Status", status: true},
					{title: "Attempts", numeric: true},
					{title: "Sender", width: 40},
					{title: "Subject", width: 40},
					{title: "Updated"},
					{title: "Error", width: 50},
				}, rows)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (processing, succeeded, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print records as JSON")
	return cmd
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show one processing record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), false, func(rt *daemonrun.Runtime) error {
				rec, err := rt.Ledger.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, api.FromRecord(*rec))
			})
		},
	}
}

func parseStatuses(values []string) ([]ledger.Status, error) {
	var out []ledger.Status
	for _, value := range values {
		status := ledger.Status(strings.ToLower(strings.TrimSpace(value)))
		switch status {
		case ledger.StatusProcessing, ledger.StatusSucceeded, ledger.StatusFailed:
			out = append(out, status)
		case "":
		default:
			return nil, fmt.Errorf("unknown status %q", value)
		}
	}
	return out, nil
}
