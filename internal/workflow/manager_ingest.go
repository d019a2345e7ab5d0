package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"lanecount/internal/audit"
	"lanecount/internal/counting"
	"lanecount/internal/detector"
	"lanecount/internal/logging"
	"lanecount/internal/queue"
	"lanecount/internal/storage"
)

// ingestNext scans processing jobs for worker output. The first job with a
// counting report is completed; jobs past the processing ceiling are failed.
// Returns false when nothing was actionable.
func (m *Manager) ingestNext(ctx context.Context) (bool, error) {
	jobs, err := m.store.List(ctx, queue.StatusProcessing)
	if err != nil {
		return false, err
	}
	cutoff := time.Now().UTC().Add(-m.cfg.MaxProcessingDuration())

	for _, job := range jobs {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if detector.HasResult(m.cfg, job.ID) {
			return m.ingestJob(ctx, job)
		}
		if job.DispatchedAt != nil && job.DispatchedAt.Before(cutoff) {
			return true, m.failOverdue(ctx, job)
		}
	}
	return false, nil
}

// ingestJob validates the worker report, secures the artifact, and completes
// the job. A malformed report fails the job; a transient upload failure or a
// still-missing artifact defers to the next pass without reporting progress.
func (m *Manager) ingestJob(ctx context.Context, job *queue.Job) (bool, error) {
	payload, err := detector.LoadResult(m.cfg, job.ID)
	if err != nil {
		return true, m.failJob(ctx, job, fmt.Sprintf("unreadable counting report: %v", err))
	}

	result, err := counting.Ingest(payload, m.cfg.Detector.MaxDetectionsPerFrame)
	if err != nil {
		var malformed *counting.MalformedResultError
		if errors.As(err, &malformed) {
			return true, m.failJob(ctx, job, fmt.Sprintf("malformed counting report: %v", malformed))
		}
		return false, err
	}

	if !job.HasArtifact() {
		artifactPath := detector.ProbeArtifact(m.cfg, job.ID)
		if artifactPath == "" {
			// Report exists but the artifact is still being written.
			return false, nil
		}
		uploadResult, err := m.uploader.Upload(ctx, storage.UploadRequest{
			JobID:       job.ID,
			SourcePath:  artifactPath,
			ContentType: "video/mp4",
		})
		if err != nil {
			if storage.IsTransient(err) {
				m.logger.Warn("artifact upload deferred",
					logging.String(logging.FieldJobID, job.ID),
					logging.Error(err))
				return false, nil
			}
			return true, m.failJob(ctx, job, fmt.Sprintf("artifact upload failed: %v", err))
		}
		job, err = m.store.SetArtifact(ctx, job.ID, uploadResult.URL, uploadResult.ObjectKey)
		if err != nil {
			return false, err
		}
	}

	completed, err := m.store.Complete(ctx, job.ID, queue.StatusProcessing, result)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			// A racing completion already landed the same outcome.
			m.logger.Info("completion already applied",
				logging.String(logging.FieldJobID, job.ID))
			return true, nil
		}
		return false, err
	}

	m.recorder.Record(ctx, completed.ID, completed.OwnerID, audit.ActionCompleted,
		"counting result recorded",
		map[string]string{
			"total": strconv.Itoa(result.TotalCounted),
			"lanes": strconv.Itoa(len(result.Lanes)),
		})
	if err := m.notifier.NotifyJobCompleted(ctx, completed.ID, result.TotalCounted, len(result.Lanes)); err != nil {
		m.logger.Warn("completion notification failed", logging.Error(err))
	}
	if err := detector.CleanupJob(m.cfg, completed.ID); err != nil {
		m.logger.Warn("worker file cleanup failed",
			logging.String(logging.FieldJobID, completed.ID),
			logging.Error(err))
	}
	m.logger.Info("job completed",
		logging.String(logging.FieldJobID, completed.ID),
		logging.Int("total_counted", result.TotalCounted),
		logging.Int("lanes", len(result.Lanes)))
	return true, nil
}

func (m *Manager) failOverdue(ctx context.Context, job *queue.Job) error {
	detail := fmt.Sprintf("detection worker produced no report within %s", m.cfg.MaxProcessingDuration())
	return m.failJob(ctx, job, detail)
}

func (m *Manager) failJob(ctx context.Context, job *queue.Job, detail string) error {
	failed, err := m.store.Fail(ctx, job.ID, detail)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			// The job escaped processing while we decided to fail it.
			return nil
		}
		return err
	}
	m.recorder.Record(ctx, failed.ID, failed.OwnerID, audit.ActionFailed, detail, nil)
	if err := m.notifier.NotifyJobFailed(ctx, failed.ID, detail); err != nil {
		m.logger.Warn("failure notification failed", logging.Error(err))
	}
	m.logger.Warn("job failed",
		logging.String(logging.FieldJobID, failed.ID),
		logging.String("detail", detail))
	return nil
}
