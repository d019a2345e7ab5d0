package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lanecount/internal/counting"
)

// MarkProcessing transitions an uploaded job into processing when it is
// dispatched to the detection worker. Dispatching an already-processing job
// is a no-op so duplicate dispatch signals are tolerated. The dispatch
// timestamp is recorded once and preserved across duplicate signals.
func (s *Store) MarkProcessing(ctx context.Context, id string) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, dispatched_at = COALESCE(dispatched_at, ?), updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusProcessing,
		now,
		now,
		id,
		StatusUploaded,
		StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, s.transitionConflict(ctx, id, StatusProcessing)
	}
	return s.GetByID(ctx, id)
}

// SetArtifact records the durable artifact reference on behalf of the
// artifact store adapter. The URL may be refreshed by an idempotent
// re-upload to the same storage key, but the storage identifier is
// write-once: it only changes when the prior value was empty.
func (s *Store) SetArtifact(ctx context.Context, id, artifactURL, artifactID string) (*Job, error) {
	artifactURL = strings.TrimSpace(artifactURL)
	artifactID = strings.TrimSpace(artifactID)
	if artifactURL == "" || artifactID == "" {
		return nil, fmt.Errorf("%w: artifact url and storage id are required", ErrIncompleteEvidence)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET artifact_url = ?,
             artifact_id = CASE WHEN artifact_id IS NULL OR artifact_id = '' THEN ? ELSE artifact_id END,
             updated_at = ?
         WHERE id = ?`,
		artifactURL,
		artifactID,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("set artifact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.GetByID(ctx, id)
}

// Complete transitions a job into completed, attaching the counting result
// atomically with the status change so a persisted result always belongs to
// a completed job.
//
// The from status is a compare-and-set precondition: processing for the
// normal path, failed or uploaded for the repair edges. When two callers
// race, exactly one update matches the precondition; a loser that carried
// an equal result converges to the winner's record, any other loser
// receives ErrInvalidTransition. Completing an already-completed job with
// an equal result is an idempotent no-op.
func (s *Store) Complete(ctx context.Context, id string, from Status, result *counting.Result) (*Job, error) {
	switch from {
	case StatusProcessing, StatusFailed, StatusUploaded:
	default:
		return nil, fmt.Errorf("%w: cannot complete from %q", ErrInvalidTransition, from)
	}

	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.Status == StatusCompleted {
		if result == nil || (job.Result != nil && job.Result.Equal(result)) {
			return job, nil
		}
		return nil, fmt.Errorf("%w: job %s already completed with a different counting result", ErrInvalidTransition, id)
	}

	if !job.HasArtifact() {
		return nil, fmt.Errorf("%w: job %s has no artifact reference", ErrIncompleteEvidence, id)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: job %s has no counting result", ErrIncompleteEvidence, id)
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode counting result: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, counting_result_json = ?, error_detail = NULL,
             completed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		string(resultJSON),
		now,
		now,
		id,
		from,
	)
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == StatusCompleted && current.Result != nil && current.Result.Equal(result) {
			return current, nil
		}
		return nil, fmt.Errorf("%w: job %s is %s, cannot reach %s", ErrInvalidTransition, id, current.Status, StatusCompleted)
	}
	return s.GetByID(ctx, id)
}

// Fail transitions a processing job into failed. The error detail is
// mandatory on this edge.
func (s *Store) Fail(ctx context.Context, id, errorDetail string) (*Job, error) {
	errorDetail = strings.TrimSpace(errorDetail)
	if errorDetail == "" {
		return nil, fmt.Errorf("%w: error detail is required to fail a job", ErrIncompleteEvidence)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_detail = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed,
		errorDetail,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, s.transitionConflict(ctx, id, StatusFailed)
	}
	return s.GetByID(ctx, id)
}

// RetryFailed moves failed jobs back to uploaded for re-dispatch, clearing
// the failure detail. Operator tooling; the pipeline itself never walks this
// edge.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs
            SET status = ?, error_detail = NULL, dispatched_at = NULL, updated_at = ?
            WHERE status = ?`,
			StatusUploaded,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusUploaded, now, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE jobs
        SET status = ?, error_detail = NULL, dispatched_at = NULL, updated_at = ?
        WHERE status = ? AND id IN (` + placeholders + `)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// transitionConflict distinguishes a missing job from a CAS miss after an
// UPDATE matched no rows.
func (s *Store) transitionConflict(ctx context.Context, id string, target Status) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("inspect job after failed transition: %w", err)
	}
	return fmt.Errorf("%w: job %s is %s, cannot reach %s", ErrInvalidTransition, id, job.Status, target)
}
