package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"lanecount/internal/audit"
	"lanecount/internal/config"
	"lanecount/internal/counting"
	"lanecount/internal/detector"
	"lanecount/internal/logging"
	"lanecount/internal/queue"
	"lanecount/internal/storage"
)

const (
	defaultUploadAttempts = 3
	defaultUploadBackoff  = 2 * time.Second
)

// Report describes what one reconcile pass found and did for a job.
type Report struct {
	JobID            string
	StatusBefore     queue.Status
	StatusAfter      queue.Status
	UploadedArtifact bool
	RecoveredResult  bool
	Repaired         bool
	Notes            []string
}

func (r *Report) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Reconciler repairs jobs whose recorded state fell behind the evidence on
// disk: a worker that finished after its job was failed, an upload that was
// interrupted, a completion signal that never arrived.
type Reconciler struct {
	cfg      *config.Config
	store    *queue.Store
	uploader storage.Uploader
	recorder *audit.Recorder
	logger   *slog.Logger

	uploadAttempts int
	uploadBackoff  time.Duration
}

// NewReconciler builds a reconciler over the store and artifact uploader.
func NewReconciler(cfg *config.Config, store *queue.Store, uploader storage.Uploader, recorder *audit.Recorder, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		cfg:            cfg,
		store:          store,
		uploader:       uploader,
		recorder:       recorder,
		logger:         logger.With(logging.String(logging.FieldComponent, "reconcile")),
		uploadAttempts: defaultUploadAttempts,
		uploadBackoff:  defaultUploadBackoff,
	}
}

// Reconcile inspects one job and walks it as far toward completed as the
// surviving evidence allows. Running it repeatedly over the same job is
// safe; a pass over an already-consistent job changes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, jobID string) (*Report, error) {
	job, err := r.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	report := &Report{JobID: jobID, StatusBefore: job.Status, StatusAfter: job.Status}

	if job.Status == queue.StatusCompleted && job.Result != nil {
		report.note("job already completed with its counting result")
		return report, nil
	}

	lock := flock.New(filepath.Join(r.cfg.Paths.LockfileDir, "reconcile-"+jobID+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !locked {
		report.note("another reconcile pass holds the job lock")
		return report, nil
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if !job.HasArtifact() {
		job, err = r.recoverArtifact(ctx, job, report)
		if err != nil {
			return report, err
		}
	}

	result, err := r.recoverResult(job, report)
	if err != nil {
		return report, err
	}

	if !job.HasArtifact() || result == nil {
		report.note("evidence incomplete, leaving job as %s", job.Status)
		return report, nil
	}

	completed, err := r.store.Complete(ctx, job.ID, job.Status, result)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			report.note("job moved to %s during reconcile", report.StatusAfter)
			return report, nil
		}
		return report, err
	}

	report.StatusAfter = completed.Status
	report.Repaired = report.StatusBefore != queue.StatusCompleted
	if report.Repaired {
		r.recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionCompleted,
			fmt.Sprintf("reconciled from %s to completed", report.StatusBefore),
			map[string]string{
				"total":         strconv.Itoa(result.TotalCounted),
				"repaired_from": string(report.StatusBefore),
			})
		r.logger.Info("job repaired",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("from", string(report.StatusBefore)))
	}
	return report, nil
}

// ReconcileStuck sweeps all processing and failed jobs.
func (r *Reconciler) ReconcileStuck(ctx context.Context) ([]*Report, error) {
	jobs, err := r.store.ListStuck(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]*Report, 0, len(jobs))
	for _, job := range jobs {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		report, err := r.Reconcile(ctx, job.ID)
		if err != nil {
			r.logger.Warn("reconcile pass failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// recoverArtifact uploads a locally surviving artifact and records the
// durable reference. Transient upload failures back off and retry a few
// times before giving up for this pass.
func (r *Reconciler) recoverArtifact(ctx context.Context, job *queue.Job, report *Report) (*queue.Job, error) {
	artifactPath := detector.ProbeArtifact(r.cfg, job.ID)
	if artifactPath == "" {
		report.note("no local artifact to upload")
		return job, nil
	}

	var (
		result *storage.UploadResult
		err    error
	)
	backoff := r.uploadBackoff
	for attempt := 1; attempt <= r.uploadAttempts; attempt++ {
		result, err = r.uploader.Upload(ctx, storage.UploadRequest{
			JobID:       job.ID,
			SourcePath:  artifactPath,
			ContentType: "video/mp4",
		})
		if err == nil || !storage.IsTransient(err) {
			break
		}
		if attempt == r.uploadAttempts {
			break
		}
		report.note("transient upload failure, attempt %d of %d", attempt, r.uploadAttempts)
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if err != nil {
		return job, fmt.Errorf("recover artifact: %w", err)
	}

	updated, err := r.store.SetArtifact(ctx, job.ID, result.URL, result.ObjectKey)
	if err != nil {
		return job, err
	}
	report.UploadedArtifact = true
	report.note("uploaded artifact to %s", result.ObjectKey)
	return updated, nil
}

// recoverResult recomputes the counting result from the worker's surviving
// report. A malformed report is surfaced, not silently skipped: the job
// cannot be repaired until the worker rewrites it.
func (r *Reconciler) recoverResult(job *queue.Job, report *Report) (*counting.Result, error) {
	if !detector.HasResult(r.cfg, job.ID) {
		report.note("no local counting report")
		return nil, nil
	}
	payload, err := detector.LoadResult(r.cfg, job.ID)
	if err != nil {
		return nil, fmt.Errorf("load counting report: %w", err)
	}
	result, err := counting.Ingest(payload, r.cfg.Detector.MaxDetectionsPerFrame)
	if err != nil {
		return nil, fmt.Errorf("ingest counting report: %w", err)
	}
	report.RecoveredResult = true
	return result, nil
}
