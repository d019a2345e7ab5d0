package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lanecount/internal/config"
	"lanecount/internal/queue"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts per lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				if health.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := [][]string{
					{string(queue.StatusUploaded), strconv.Itoa(health.Uploaded)},
					{string(queue.StatusProcessing), strconv.Itoa(health.Processing)},
					{string(queue.StatusCompleted), strconv.Itoa(health.Completed)},
					{string(queue.StatusFailed), strconv.Itoa(health.Failed)},
					{"total", strconv.Itoa(health.Total)},
				}
				table := renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database health and flag inconsistent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context(), cfg.MaxProcessingDuration())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database: %s\n", health.Path)
				if health.Healthy {
					fmt.Fprintln(out, "Status:   healthy")
					return nil
				}
				fmt.Fprintf(out, "Status:   %s\n", health.Detail)
				for _, warning := range health.Warnings {
					fmt.Fprintf(out, "  - %s\n", warning)
				}
				return nil
			})
		},
	}
}
