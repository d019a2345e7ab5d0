package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lanecount/internal/audit"
	"lanecount/internal/config"
	"lanecount/internal/queue"
	"lanecount/internal/reconcile"
	"lanecount/internal/storage"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reconcile [job-id]",
		Short: "Repair interrupted jobs from their on-disk evidence",
		Long: "Reconcile inspects a job's working directory for the detector report " +
			"and processed artifact, replays any missing upload, and moves the job " +
			"to completed when full evidence exists.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("provide a job id or --all")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				uploader, err := storage.NewGCSUploader(cmd.Context(), cfg, nil)
				if err != nil {
					return fmt.Errorf("open storage client: %w", err)
				}
				defer uploader.Close()

				recorder := audit.NewRecorder(store, nil)
				reconciler := reconcile.NewReconciler(cfg, store, uploader, recorder, nil)

				if all {
					reports, err := reconciler.ReconcileStuck(cmd.Context())
					if err != nil {
						return err
					}
					if len(reports) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No jobs need reconciliation")
						return nil
					}
					for _, report := range reports {
						printReconcileReport(cmd, report)
					}
					return nil
				}

				report, err := reconciler.Reconcile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printReconcileReport(cmd, report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "reconcile every stuck processing and failed job")
	return cmd
}

func printReconcileReport(cmd *cobra.Command, report *reconcile.Report) {
	out := cmd.OutOrStdout()
	if report.Repaired {
		fmt.Fprintf(out, "Job %s: %s -> %s\n", report.JobID, report.StatusBefore, report.StatusAfter)
	} else {
		fmt.Fprintf(out, "Job %s: still %s\n", report.JobID, report.StatusAfter)
	}
	for _, note := range report.Notes {
		fmt.Fprintf(out, "  %s\n", note)
	}
}
