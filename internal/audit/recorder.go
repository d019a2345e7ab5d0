package audit

import (
	"context"
	"log/slog"
	"time"

	"lanecount/internal/logging"
	"lanecount/internal/queue"
)

// Action types recorded in the audit trail.
const (
	ActionUpload     = "upload"
	ActionProcessing = "processing"
	ActionCompleted  = "completed"
	ActionFailed     = "failed"
	ActionDeleted    = "deleted"
	ActionViewed     = "viewed"
)

// Recorder appends audit events for job lifecycle activity. Recording never
// fails the caller: persistence errors are logged and swallowed so the
// pipeline's own transitions stay authoritative.
type Recorder struct {
	store  *queue.Store
	logger *slog.Logger
}

// NewRecorder builds a recorder over the job store.
func NewRecorder(store *queue.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{
		store:  store,
		logger: logger.With(logging.String(logging.FieldComponent, "audit")),
	}
}

// Record appends one audit entry for a job. Re-recording the latest entry
// verbatim is suppressed so idempotent re-runs of a pipeline step do not
// inflate the trail.
func (r *Recorder) Record(ctx context.Context, jobID, ownerID, action, description string, metadata map[string]string) {
	if r == nil || r.store == nil {
		return
	}

	latest, err := r.store.LatestAuditEvent(ctx, jobID, action)
	if err != nil {
		r.logger.Warn("audit lookup failed",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err))
	} else if latest != nil && latest.Description == description && metadataEqual(latest.Metadata, metadata) {
		return
	}

	err = r.store.AppendAuditEvent(ctx, queue.AuditEvent{
		JobID:       jobID,
		OwnerID:     ownerID,
		ActionType:  action,
		Description: description,
		Metadata:    metadata,
	})
	if err != nil {
		r.logger.Warn("audit append failed",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldEventType, action),
			logging.Error(err))
	}
}

// JobHistory returns a job's audit trail in recorded order.
func (r *Recorder) JobHistory(ctx context.Context, jobID string) ([]queue.AuditEvent, error) {
	return r.store.AuditEventsForJob(ctx, jobID)
}

// Summary aggregates audit activity per action type over the trailing
// window.
func (r *Recorder) Summary(ctx context.Context, window time.Duration) ([]queue.AuditSummaryRow, error) {
	return r.store.AuditSummary(ctx, time.Now().UTC().Add(-window))
}

func metadataEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		if b[key] != value {
			return false
		}
	}
	return true
}
