package queue

import (
	"context"
	"fmt"
	"time"
)

// Remove deletes a job record. The audit trail is append-only and outlives
// the job. Processing jobs cannot be removed; fail or complete them first.
func (s *Store) Remove(ctx context.Context, id string) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == StatusProcessing {
		return fmt.Errorf("%w: job %s is processing, cannot remove", ErrInvalidTransition, id)
	}
	if _, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	return nil
}

// ClearCompleted deletes all completed job records.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusCompleted)
}

// ClearFailed deletes all failed job records.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusFailed)
}

func (s *Store) clearByStatus(ctx context.Context, status Status) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, status)
	if err != nil {
		return 0, fmt.Errorf("clear %s jobs: %w", status, err)
	}
	return res.RowsAffected()
}

// CheckHealth verifies the database is reachable and reports queue
// diagnostics: stuck processing jobs and jobs that claim completion without
// their evidence.
func (s *Store) CheckHealth(ctx context.Context, processingTimeout time.Duration) (*DatabaseHealth, error) {
	health := &DatabaseHealth{Path: s.path, CheckedAt: time.Now().UTC()}

	if err := s.db.PingContext(ctx); err != nil {
		health.Healthy = false
		health.Detail = fmt.Sprintf("database unreachable: %v", err)
		return health, nil
	}

	cutoff := time.Now().UTC().Add(-processingTimeout)
	overdue, err := s.ListOverdueProcessing(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, job := range overdue {
		since := job.UpdatedAt
		if job.DispatchedAt != nil {
			since = *job.DispatchedAt
		}
		health.Warnings = append(health.Warnings, fmt.Sprintf("job %s processing since %s", job.ID, since.Format(time.RFC3339)))
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id FROM jobs
         WHERE status = ?
           AND (counting_result_json IS NULL OR counting_result_json = ''
                OR artifact_url IS NULL OR artifact_url = '')
         ORDER BY created_at`,
		StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("query incomplete completions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		health.Warnings = append(health.Warnings, fmt.Sprintf("job %s completed without full evidence", id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incomplete completions: %w", err)
	}

	health.Healthy = len(health.Warnings) == 0
	if !health.Healthy {
		health.Detail = fmt.Sprintf("%d issue(s) found", len(health.Warnings))
	}
	return health, nil
}
