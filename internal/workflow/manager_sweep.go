package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lanecount/internal/audit"
	"lanecount/internal/logging"
	"lanecount/internal/queue"
)

// sweep runs one maintenance pass: reconcile stuck jobs, then prune expired
// ones and release their stored artifacts.
func (m *Manager) sweep(ctx context.Context) {
	reports, err := m.reconciler.ReconcileStuck(ctx)
	if err != nil {
		m.setLastError(err)
		m.logger.Warn("reconcile sweep failed", logging.Error(err))
	}
	for _, report := range reports {
		if !report.Repaired {
			continue
		}
		if err := m.notifier.NotifyJobRepaired(ctx, report.JobID, string(report.StatusBefore)); err != nil {
			m.logger.Warn("repair notification failed", logging.Error(err))
		}
	}

	m.pruneExpired(ctx)
}

// pruneExpired removes jobs past their retention window, deleting their
// stored artifacts and any managed inbox copy of the source video.
func (m *Manager) pruneExpired(ctx context.Context) {
	expired, err := m.store.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		m.setLastError(err)
		m.logger.Warn("expired job listing failed", logging.Error(err))
		return
	}

	for _, job := range expired {
		if ctx.Err() != nil {
			return
		}
		if job.Status == queue.StatusProcessing {
			continue
		}
		if job.ArtifactID != "" {
			if err := m.uploader.Delete(ctx, job.ArtifactID); err != nil {
				m.logger.Warn("artifact deletion failed",
					logging.String(logging.FieldJobID, job.ID),
					logging.Error(err))
				continue
			}
		}
		if job.SourcePath != "" && strings.HasPrefix(job.SourcePath, m.cfg.Paths.InboxDir+string(filepath.Separator)) {
			if err := os.Remove(job.SourcePath); err != nil && !os.IsNotExist(err) {
				m.logger.Warn("source video removal failed",
					logging.String(logging.FieldJobID, job.ID),
					logging.Error(err))
			}
		}
		m.recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionDeleted,
			"retention window elapsed", nil)
		if err := m.store.Remove(ctx, job.ID); err != nil {
			m.logger.Warn("expired job removal failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
			continue
		}
		m.logger.Info("expired job removed",
			logging.String(logging.FieldJobID, job.ID))
	}
}
