package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"liftmail/internal/daemonrun"
	"liftmail/internal/directory"
	"liftmail/internal/mailparse"
)

func newCompetitionCommand(ctx *commandContext) *cobra.Command {
	compCmd := &cobra.Command{
		Use:   "competition",
		Short: "Manage competitions submissions are attached to",
	}
	compCmd.AddCommand(newCompetitionAddCommand(ctx))
	compCmd.AddCommand(newCompetitionListCommand(ctx))
	return compCmd
}

func newCompetitionAddCommand(ctx *commandContext) *cobra.Command {
	var status string
	var start string
	var lift string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a competition",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := directory.NewCompetition{
				Name:   strings.Join(args, " "),
				Status: status,
			}
			if strings.TrimSpace(start) != "" {
				parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(start))
				if err != nil {
					return fmt.Errorf("invalid --start %q (want YYYY-MM-DD)", start)
				}
				in.StartDate = parsed
			}
			if strings.TrimSpace(lift) != "" {
				canonical, ok := mailparse.CanonicalLift(lift)
				if !ok {
					return fmt.Errorf("unknown lift %q", lift)
				}
				in.DefaultLiftType = canonical
			}
			return ctx.withRuntime(cmd.Context(), false, func(rt *daemonrun.Runtime) error {
				comp, err := rt.Directory.CreateCompetition(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created competition %s (%s, %s)\n", comp.ID, comp.Name, comp.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", directory.StatusInProgress, "upcoming, in_progress or completed")
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&lift, "lift", "", "Default lift for untagged submissions")
	return cmd
}

func newCompetitionListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List competitions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), false, func(rt *daemonrun.Runtime) error {
				comps, err := rt.Directory.ListCompetitions(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(comps) == 0 {
					fmt.Fprintln(out, "No competitions")
					return nil
				}
				rows := make([][]string, 0, len(comps))
				for _, comp := range comps {
					rows = append(rows, []string{
						comp.ID,
						comp.Name,
						comp.Status,
						comp.StartDate.Format(time.DateOnly),
						comp.DefaultLiftType,
					})
				}
				writeTable(out, []column{
					{title: "ID"},
					{title: "Name", width: 40},
					{title: "Status"},
					{title: "Start"},
					{title: "Default Lift"},
				}, rows)
				return nil
			})
		},
	}
}
