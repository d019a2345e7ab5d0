package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"lanecount/internal/audit"
	"lanecount/internal/logging"
	"lanecount/internal/queue"
	"lanecount/internal/services"
)

// dispatchNext picks the oldest uploaded job and hands it to the detection
// worker. Returns false when no job was available.
func (m *Manager) dispatchNext(ctx context.Context) (bool, error) {
	job, err := m.store.NextForStatuses(ctx, queue.StatusUploaded)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	job, err = m.store.MarkProcessing(ctx, job.ID)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) || errors.Is(err, queue.ErrNotFound) {
			// Someone else moved the job first.
			return true, nil
		}
		return false, err
	}

	if _, err := m.dispatcher.Dispatch(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		detail := fmt.Sprintf("dispatch failed: %v", err)
		if _, failErr := m.store.Fail(ctx, job.ID, detail); failErr != nil {
			return false, fmt.Errorf("fail undispatchable job: %w", failErr)
		}
		m.recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionFailed, detail, nil)
		if notifyErr := m.notifier.NotifyJobFailed(ctx, job.ID, detail); notifyErr != nil {
			m.logger.Warn("failure notification failed", logging.Error(notifyErr))
		}
		if errors.Is(err, services.ErrValidation) {
			m.logger.Warn("job failed validation before dispatch",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
		return true, nil
	}

	m.recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionProcessing,
		"dispatched to detection worker",
		map[string]string{"source": filepath.Base(job.SourcePath)})
	m.logger.Info("job dispatched",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldStage, "dispatch"))
	return true, nil
}
