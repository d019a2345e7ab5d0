package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lanecount/internal/counting"
)

// NewJobParams describes a freshly uploaded video.
type NewJobParams struct {
	OwnerID         string
	SourcePath      string
	DurationSeconds float64
	SizeBytes       int64
	Resolution      string
	RetentionWindow time.Duration
}

// NewJob inserts a job for an uploaded video. The identifier is assigned here
// and the expiry is derived from the creation time plus the retention window.
func (s *Store) NewJob(ctx context.Context, params NewJobParams) (*Job, error) {
	if strings.TrimSpace(params.OwnerID) == "" {
		return nil, errors.New("owner id is required")
	}
	if params.RetentionWindow <= 0 {
		return nil, errors.New("retention window must be positive")
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, owner_id, status, source_path,
            source_duration_seconds, source_size_bytes, source_resolution,
            created_at, updated_at, expires_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		params.OwnerID,
		StatusUploaded,
		nullableString(params.SourcePath),
		params.DurationSeconds,
		params.SizeBytes,
		nullableString(params.Resolution),
		timestamp,
		timestamp,
		now.Add(params.RetentionWindow).Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// NextForStatuses returns the oldest job matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListOverdueProcessing returns processing jobs dispatched before the cutoff.
// These are candidates for the detector-timeout failure path.
func (s *Store) ListOverdueProcessing(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status = ? AND dispatched_at IS NOT NULL AND dispatched_at < ?
         ORDER BY dispatched_at`,
		StatusProcessing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list overdue processing: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListStuck returns processing and failed jobs, the candidate set for a
// reconcile sweep.
func (s *Store) ListStuck(ctx context.Context) ([]*Job, error) {
	return s.List(ctx, StatusProcessing, StatusFailed)
}

// ListExpired returns jobs whose retention window elapsed before now.
func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE expires_at < ? ORDER BY expires_at`,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusUploaded:
			health.Uploaded += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

const jobColumns = "id, owner_id, status, source_path, source_duration_seconds, source_size_bytes, source_resolution, artifact_url, artifact_id, counting_result_json, error_detail, created_at, updated_at, dispatched_at, completed_at, expires_at"

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            string
		ownerID       string
		statusStr     string
		sourcePath    sql.NullString
		duration      sql.NullFloat64
		sizeBytes     sql.NullInt64
		resolution    sql.NullString
		artifactURL   sql.NullString
		artifactID    sql.NullString
		resultJSON    sql.NullString
		errorDetail   sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		dispatchedRaw sql.NullString
		completedRaw  sql.NullString
		expiresRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&ownerID,
		&statusStr,
		&sourcePath,
		&duration,
		&sizeBytes,
		&resolution,
		&artifactURL,
		&artifactID,
		&resultJSON,
		&errorDetail,
		&createdRaw,
		&updatedRaw,
		&dispatchedRaw,
		&completedRaw,
		&expiresRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                    id,
		OwnerID:               ownerID,
		Status:                Status(statusStr),
		SourcePath:            sourcePath.String,
		SourceDurationSeconds: duration.Float64,
		SourceSizeBytes:       sizeBytes.Int64,
		SourceResolution:      resolution.String,
		ArtifactURL:           artifactURL.String,
		ArtifactID:            artifactID.String,
		ErrorDetail:           errorDetail.String,
	}

	if resultJSON.Valid && resultJSON.String != "" {
		var result counting.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("decode counting result for job %s: %w", id, err)
		}
		job.Result = &result
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if expires, err := parseTimeString(expiresRaw.String); err == nil {
		job.ExpiresAt = expires
	}
	if dispatchedRaw.Valid {
		if dispatched, err := parseTimeString(dispatchedRaw.String); err == nil {
			job.DispatchedAt = &dispatched
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
