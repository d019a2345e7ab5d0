package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEvent is one immutable entry in a job's history.
type AuditEvent struct {
	ID          int64
	JobID       string
	OwnerID     string
	ActionType  string
	Description string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// AuditSummaryRow aggregates audit activity for one action type over a
// reporting window.
type AuditSummaryRow struct {
	ActionType string
	Count      int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// AppendAuditEvent records an audit entry. Entries are append-only and
// outlive the jobs they describe.
func (s *Store) AppendAuditEvent(ctx context.Context, event AuditEvent) error {
	if event.JobID == "" || event.ActionType == "" {
		return fmt.Errorf("%w: audit events require a job id and action type", ErrIncompleteEvidence)
	}
	var metadataJSON sql.NullString
	if len(event.Metadata) > 0 {
		encoded, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(encoded), Valid: true}
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO audit_events (job_id, owner_id, action_type, description, metadata_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		event.JobID,
		event.OwnerID,
		event.ActionType,
		event.Description,
		metadataJSON,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// AuditEventsForJob returns a job's full history in the order it was
// recorded. Entries sharing a timestamp keep insertion order.
func (s *Store) AuditEventsForJob(ctx context.Context, jobID string) ([]AuditEvent, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, job_id, owner_id, action_type, description, metadata_json, created_at
         FROM audit_events
         WHERE job_id = ?
         ORDER BY created_at, id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// LatestAuditEvent returns the most recent entry of the given action type
// for a job, or nil when none exists.
func (s *Store) LatestAuditEvent(ctx context.Context, jobID, actionType string) (*AuditEvent, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, job_id, owner_id, action_type, description, metadata_json, created_at
         FROM audit_events
         WHERE job_id = ? AND action_type = ?
         ORDER BY created_at DESC, id DESC
         LIMIT 1`,
		jobID,
		actionType,
	)
	event, err := scanAuditEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// AuditSummary aggregates activity per action type since the given time.
func (s *Store) AuditSummary(ctx context.Context, since time.Time) ([]AuditSummaryRow, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT action_type, COUNT(*), MIN(created_at), MAX(created_at)
         FROM audit_events
         WHERE created_at >= ?
         GROUP BY action_type
         ORDER BY action_type`,
		since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit summary: %w", err)
	}
	defer rows.Close()

	var summary []AuditSummaryRow
	for rows.Next() {
		var (
			row               AuditSummaryRow
			firstRaw, lastRaw string
		)
		if err := rows.Scan(&row.ActionType, &row.Count, &firstRaw, &lastRaw); err != nil {
			return nil, fmt.Errorf("scan audit summary row: %w", err)
		}
		if row.FirstSeen, err = parseTimeString(firstRaw); err != nil {
			return nil, fmt.Errorf("parse audit summary first seen: %w", err)
		}
		if row.LastSeen, err = parseTimeString(lastRaw); err != nil {
			return nil, fmt.Errorf("parse audit summary last seen: %w", err)
		}
		summary = append(summary, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit summary: %w", err)
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditEvent(row rowScanner) (AuditEvent, error) {
	var (
		event        AuditEvent
		ownerID      sql.NullString
		description  sql.NullString
		metadataJSON sql.NullString
		createdRaw   string
	)
	if err := row.Scan(&event.ID, &event.JobID, &ownerID, &event.ActionType, &description, &metadataJSON, &createdRaw); err != nil {
		if err == sql.ErrNoRows {
			return AuditEvent{}, err
		}
		return AuditEvent{}, fmt.Errorf("scan audit event: %w", err)
	}
	event.OwnerID = ownerID.String
	event.Description = description.String
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &event.Metadata); err != nil {
			return AuditEvent{}, fmt.Errorf("decode audit metadata: %w", err)
		}
	}
	createdAt, err := parseTimeString(createdRaw)
	if err != nil {
		return AuditEvent{}, fmt.Errorf("parse audit timestamp: %w", err)
	}
	event.CreatedAt = createdAt
	return event, nil
}
