package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"furrow/internal/ipc"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Track and control server-side aggregation jobs",
	}

	syncCmd.AddCommand(newSyncStatusCommand(ctx))
	syncCmd.AddCommand(newSyncTriggerCommand(ctx))
	syncCmd.AddCommand(newSyncCancelCommand(ctx))
	syncCmd.AddCommand(newSyncDetachCommand(ctx))
	syncCmd.AddCommand(newSyncListCommand(ctx))

	return syncCmd
}

func scopeFlags(cmd *cobra.Command, org *int64, year *int) {
	cmd.Flags().Int64Var(org, "org", 0, "Organization ID")
	cmd.Flags().IntVar(year, "year", 0, "Season year")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("year")
}

func validateScope(org int64, year int) (ipc.JobScope, error) {
	if org <= 0 {
		return ipc.JobScope{}, errors.New("--org must be a positive organization ID")
	}
	if year < 2000 || year > 2200 {
		return ipc.JobScope{}, fmt.Errorf("--year %d is out of range", year)
	}
	return ipc.JobScope{OrgID: org, Year: year}, nil
}

func newSyncStatusCommand(ctx *commandContext) *cobra.Command {
	var org int64
	var year int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Attach to a scope's sync job and show its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := validateScope(org, year)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobAttach(scope)
				if err != nil {
					return err
				}
				printJobState(cmd.OutOrStdout(), resp.State)
				return nil
			})
		},
	}
	scopeFlags(cmd, &org, &year)
	return cmd
}

func newSyncTriggerCommand(ctx *commandContext) *cobra.Command {
	var org int64
	var year int
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Start a sync job for a scope (adopts one already running)",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := validateScope(org, year)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobTrigger(scope)
				if err != nil {
					return err
				}
				if resp.State.Resumed {
					fmt.Fprintln(cmd.OutOrStdout(), "A sync job was already running; tracking it instead of starting another")
				}
				printJobState(cmd.OutOrStdout(), resp.State)
				return nil
			})
		},
	}
	scopeFlags(cmd, &org, &year)
	return cmd
}

func newSyncCancelCommand(ctx *commandContext) *cobra.Command {
	var org int64
	var year int
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a scope's sync job (waits for server acknowledgement)",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := validateScope(org, year)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobCancel(scope)
				if err != nil {
					return err
				}
				printJobState(cmd.OutOrStdout(), resp.State)
				return nil
			})
		},
	}
	scopeFlags(cmd, &org, &year)
	return cmd
}

func newSyncDetachCommand(ctx *commandContext) *cobra.Command {
	var org int64
	var year int
	cmd := &cobra.Command{
		Use:   "detach",
		Short: "Stop watching a scope; its job keeps being tracked in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := validateScope(org, year)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.JobDetach(scope); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Detached from org %d / %d; tracking continues in the background\n", org, year)
				return nil
			})
		},
	}
	scopeFlags(cmd, &org, &year)
	return cmd
}

func newSyncListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every tracked sync job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"jobs": resp.Jobs})
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tracked sync jobs")
					return nil
				}
				table := renderTable(
					[]string{"Org", "Year", "Phase", "Progress", "Detached", "Message"},
					buildJobRows(resp.Jobs),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildJobRows(jobs []ipc.JobState) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.OrgID),
			fmt.Sprintf("%d", job.Year),
			statusLabel(job.Phase),
			formatProgress(job.Current, job.Total),
			yesNo(job.Detached),
			truncate(job.Message, 48),
		})
	}
	return rows
}

func formatProgress(current, total int) string {
	if total <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", current, total)
}

func printJobState(out io.Writer, state ipc.JobState) {
	fmt.Fprintf(out, "Scope:    org %d / %d\n", state.OrgID, state.Year)
	fmt.Fprintf(out, "Phase:    %s\n", statusLabel(state.Phase))
	if state.Total > 0 {
		fmt.Fprintf(out, "Progress: %s\n", formatProgress(state.Current, state.Total))
	}
	if state.Resumed {
		fmt.Fprintln(out, "Resumed:  yes (adopted a job already running server-side)")
	}
	if state.Cause != "" && state.Cause != "server" {
		fmt.Fprintf(out, "Cause:    %s\n", statusLabel(state.Cause))
	}
	if state.Message != "" {
		fmt.Fprintf(out, "Message:  %s\n", state.Message)
	}
}
