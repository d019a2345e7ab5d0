// Command lanecountd runs the traffic counting daemon: it watches the queue
// for uploaded jobs, dispatches them to the detection worker, ingests worker
// reports, and sweeps stuck and expired jobs in the background.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"lanecount/internal/config"
	"lanecount/internal/logging"
	"lanecount/internal/preflight"
	"lanecount/internal/queue"
	"lanecount/internal/storage"
	"lanecount/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("lanecountd: %v", err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, check := range preflight.RunAll(ctx, cfg) {
		if check.Passed {
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail))
	}

	// A single daemon per data directory; a second instance exits instead
	// of racing the first over dispatch and sweep work.
	lockPath := filepath.Join(cfg.Paths.LockfileDir, "lanecountd.lock")
	daemonLock := flock.New(lockPath)
	held, err := daemonLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !held {
		return fmt.Errorf("another lanecountd instance holds %s", lockPath)
	}
	defer daemonLock.Unlock() //nolint:errcheck

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	uploader, err := storage.NewGCSUploader(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage client: %w", err)
	}
	defer uploader.Close()

	manager := workflow.NewManager(cfg, store, uploader, logger)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}

	logger.Info("lanecountd started",
		logging.String("lock", lockPath),
		logging.String("bucket", cfg.Storage.Bucket))

	<-ctx.Done()
	logger.Info("lanecountd shutting down")
	manager.Stop()
	return nil
}
