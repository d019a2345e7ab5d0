package queue

import (
	"strings"
	"time"

	"lanecount/internal/counting"
)

// Status represents the lifecycle of a processing job.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusUploaded,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Job represents one uploaded traffic video and its processing outcome,
// persisted in SQLite.
//
// Field ownership is strict: status, error_detail, and completed_at are
// written only by the transition methods; artifact_url and artifact_id only
// by SetArtifact on behalf of the artifact store adapter; the counting result
// only by Complete. Callers never update these fields directly.
type Job struct {
	ID                    string
	OwnerID               string
	Status                Status
	SourcePath            string
	SourceDurationSeconds float64
	SourceSizeBytes       int64
	SourceResolution      string
	ArtifactURL           string
	ArtifactID            string
	Result                *counting.Result
	ErrorDetail           string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	DispatchedAt          *time.Time
	CompletedAt           *time.Time
	ExpiresAt             time.Time
}

// IsTerminal reports whether the job reached a final state. Failed jobs are
// terminal for the pipeline but remain eligible for repair.
func (j Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// HasArtifact reports whether a durable artifact reference has been recorded.
func (j Job) HasArtifact() bool {
	return strings.TrimSpace(j.ArtifactURL) != ""
}

// Expired reports whether the job's retention window has elapsed at now.
func (j Job) Expired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && now.After(j.ExpiresAt)
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Uploaded   int
	Processing int
	Completed  int
	Failed     int
}

// DatabaseHealth captures diagnostic findings about the job database:
// stuck processing jobs and completed jobs missing their evidence.
type DatabaseHealth struct {
	Path      string
	Healthy   bool
	Detail    string
	Warnings  []string
	CheckedAt time.Time
}
