package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lanecount/internal/audit"
	"lanecount/internal/config"
	"lanecount/internal/queue"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit <job-id>",
		Short: "Show the audit trail for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				recorder := audit.NewRecorder(store, nil)
				events, err := recorder.JobHistory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(events) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No audit events for job %s\n", args[0])
					return nil
				}
				rows := make([][]string, 0, len(events))
				for _, event := range events {
					rows = append(rows, []string{
						formatTime(event.CreatedAt),
						event.ActionType,
						event.Description,
						formatAuditMetadata(event.Metadata),
					})
				}
				table := renderTable(
					[]string{"Time", "Action", "Description", "Metadata"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
	cmd.AddCommand(newAuditSummaryCommand(ctx))
	return cmd
}

func newAuditSummaryCommand(ctx *commandContext) *cobra.Command {
	var windowHours int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate audit events per action type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				recorder := audit.NewRecorder(store, nil)
				window := time.Duration(windowHours) * time.Hour
				summary, err := recorder.Summary(cmd.Context(), window)
				if err != nil {
					return err
				}
				if len(summary) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No audit events in the last %dh\n", windowHours)
					return nil
				}
				rows := make([][]string, 0, len(summary))
				for _, row := range summary {
					rows = append(rows, []string{
						row.ActionType,
						strconv.Itoa(row.Count),
						formatTime(row.FirstSeen),
						formatTime(row.LastSeen),
					})
				}
				table := renderTable(
					[]string{"Action", "Count", "First Seen", "Last Seen"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&windowHours, "window", 24, "look-back window in hours")
	return cmd
}

func formatAuditMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+metadata[key])
	}
	return strings.Join(parts, " ")
}
