package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"lanecount/internal/audit"
	"lanecount/internal/config"
	"lanecount/internal/fileutil"
	"lanecount/internal/media/ffprobe"
	"lanecount/internal/queue"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and manage counting jobs",
	}

	jobCmd.AddCommand(newJobAddCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobRetryCommand(ctx))
	jobCmd.AddCommand(newJobRemoveCommand(ctx))
	jobCmd.AddCommand(newJobClearCommand(ctx))

	return jobCmd
}

func newJobAddCommand(ctx *commandContext) *cobra.Command {
	var (
		ownerID    string
		duration   float64
		resolution string
	)
	cmd := &cobra.Command{
		Use:   "add <video-file>",
		Short: "Register an uploaded traffic video for counting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(source)
			if err != nil {
				return fmt.Errorf("source video: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("source video %s is a directory", source)
			}

			if duration == 0 || resolution == "" {
				if probed, err := ffprobe.Inspect(cmd.Context(), "", source); err == nil {
					if duration == 0 {
						duration = probed.DurationSeconds
					}
					if resolution == "" {
						resolution = probed.Resolution()
					}
				}
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				managed := source
				if filepath.Dir(source) != cfg.Paths.InboxDir {
					managed = filepath.Join(cfg.Paths.InboxDir, filepath.Base(source))
					if err := fileutil.CopyVerified(source, managed); err != nil {
						return fmt.Errorf("ingest video into inbox: %w", err)
					}
				}

				job, err := store.NewJob(cmd.Context(), queue.NewJobParams{
					OwnerID:         ownerID,
					SourcePath:      managed,
					DurationSeconds: duration,
					SizeBytes:       info.Size(),
					Resolution:      resolution,
					RetentionWindow: cfg.RetentionWindow(),
				})
				if err != nil {
					return err
				}
				recorder := audit.NewRecorder(store, nil)
				recorder.Record(cmd.Context(), job.ID, job.OwnerID, audit.ActionUpload,
					"video registered for counting",
					map[string]string{"source": filepath.Base(source)})
				fmt.Fprintf(cmd.OutOrStdout(), "Registered job %s for %s\n", job.ID, source)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "local", "Identifier of the uploading account")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Video duration in seconds, if known")
	cmd.Flags().StringVar(&resolution, "resolution", "", "Video resolution, e.g. 1920x1080")
	return cmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List counting jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(statusFilters))
			for _, raw := range statusFilters {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}

				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					total := "-"
					if job.Result != nil {
						total = strconv.Itoa(job.Result.TotalCounted)
					}
					rows = append(rows, []string{
						job.ID,
						statusLabel(out, job.Status),
						truncate(filepath.Base(job.SourcePath), 36),
						total,
						formatTime(job.CreatedAt),
					})
				}
				table := renderTable(
					[]string{"Job", "Status", "Source", "Counted", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (uploaded, processing, completed, failed)")
	return cmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job with its counting result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := store.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				recorder := audit.NewRecorder(store, nil)
				recorder.Record(cmd.Context(), job.ID, job.OwnerID, audit.ActionViewed,
					"result viewed", nil)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:        %s\n", job.ID)
				fmt.Fprintf(out, "Owner:      %s\n", job.OwnerID)
				fmt.Fprintf(out, "Status:     %s\n", statusLabel(out, job.Status))
				fmt.Fprintf(out, "Source:     %s\n", job.SourcePath)
				if job.SourceDurationSeconds > 0 {
					fmt.Fprintf(out, "Duration:   %.1fs\n", job.SourceDurationSeconds)
				}
				if job.SourceSizeBytes > 0 {
					fmt.Fprintf(out, "Size:       %s\n", formatBytes(job.SourceSizeBytes))
				}
				if job.SourceResolution != "" {
					fmt.Fprintf(out, "Resolution: %s\n", job.SourceResolution)
				}
				fmt.Fprintf(out, "Created:    %s\n", formatTime(job.CreatedAt))
				fmt.Fprintf(out, "Dispatched: %s\n", formatOptionalTime(job.DispatchedAt))
				fmt.Fprintf(out, "Completed:  %s\n", formatOptionalTime(job.CompletedAt))
				fmt.Fprintf(out, "Expires:    %s\n", formatTime(job.ExpiresAt))
				if job.HasArtifact() {
					fmt.Fprintf(out, "Artifact:   %s\n", job.ArtifactURL)
				}
				if job.ErrorDetail != "" {
					fmt.Fprintf(out, "Error:      %s\n", job.ErrorDetail)
				}

				if job.Result != nil {
					result := job.Result
					fmt.Fprintf(out, "\nCounted %d vehicles (%d identities, line at %dpx, accuracy %.2f)\n",
						result.TotalCounted, len(result.CountedIdentities), result.LinePositionPixels, result.AccuracyEstimate)

					laneIDs := make([]string, 0, len(result.Lanes))
					for lane := range result.Lanes {
						laneIDs = append(laneIDs, lane)
					}
					sort.Strings(laneIDs)
					rows := make([][]string, 0, len(laneIDs))
					for _, lane := range laneIDs {
						count := result.Lanes[lane]
						classes := make([]string, 0, len(count.Classes))
						for class := range count.Classes {
							classes = append(classes, class)
						}
						sort.Strings(classes)
						byClass := ""
						for i, class := range classes {
							if i > 0 {
								byClass += ", "
							}
							byClass += fmt.Sprintf("%s: %d", class, count.Classes[class])
						}
						rows = append(rows, []string{
							lane,
							strconv.Itoa(count.Total),
							byClass,
						})
					}
					table := renderTable(
						[]string{"Lane", "Total", "By class"},
						rows,
						[]columnAlignment{alignRight, alignRight, alignLeft},
					)
					fmt.Fprintln(out, table)
				}
				return nil
			})
		},
	}
}

func newJobRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Requeue failed jobs for another worker pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				count, err := store.RetryFailed(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d job(s)\n", count)
				return nil
			})
		},
	}
}

func newJobRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := store.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				recorder := audit.NewRecorder(store, nil)
				recorder.Record(cmd.Context(), job.ID, job.OwnerID, audit.ActionDeleted,
					"removed by operator", nil)
				if err := store.Remove(cmd.Context(), job.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", job.ID)
				return nil
			})
		},
	}
}

func newJobClearCommand(ctx *commandContext) *cobra.Command {
	var clearFailed bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear completed jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				var (
					count int64
					err   error
					label = "completed"
				)
				if clearFailed {
					count, err = store.ClearFailed(cmd.Context())
					label = "failed"
				} else {
					count, err = store.ClearCompleted(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s job(s)\n", count, label)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Clear failed jobs instead of completed ones")
	return cmd
}
