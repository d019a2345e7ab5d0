package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"lanecount/internal/logging"
	"lanecount/internal/preflight"
	"lanecount/internal/queue"
	"lanecount/internal/storage"
	"lanecount/internal/workflow"
)

const statusHeartbeatInterval = time.Minute

// newDaemonCommand runs the pipeline in the foreground until interrupted.
// It is the same wiring as the lanecountd binary, surfaced through the CLI
// for supervised or interactive runs.
func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the counting pipeline in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			for _, check := range preflight.RunAll(cmd.Context(), cfg) {
				if check.Passed {
					continue
				}
				logger.Warn("preflight check failed",
					logging.String("check", check.Name),
					logging.String("detail", check.Detail))
			}

			lockPath := filepath.Join(cfg.Paths.LockfileDir, "lanecountd.lock")
			daemonLock := flock.New(lockPath)
			held, err := daemonLock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire daemon lock: %w", err)
			}
			if !held {
				return fmt.Errorf("another daemon instance holds %s", lockPath)
			}
			defer daemonLock.Unlock() //nolint:errcheck

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			uploader, err := storage.NewGCSUploader(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("open storage client: %w", err)
			}
			defer uploader.Close()

			manager := workflow.NewManager(cfg, store, uploader, logger)
			if err := manager.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start workflow: %w", err)
			}
			defer manager.Stop()

			heartbeat := time.NewTicker(statusHeartbeatInterval)
			defer heartbeat.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-heartbeat.C:
					status, err := manager.Status(cmd.Context())
					if err != nil {
						logger.Warn("status snapshot failed", logging.Error(err))
						continue
					}
					logger.Info("pipeline status",
						logging.Int("uploaded", status.Queue.Uploaded),
						logging.Int("processing", status.Queue.Processing),
						logging.Int("completed", status.Queue.Completed),
						logging.Int("failed", status.Queue.Failed),
						logging.String("last_error", status.LastErr))
				}
			}
		},
	}
}
