package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"lanecount/internal/config"
	"lanecount/internal/logging"
	"lanecount/internal/queue"
	"lanecount/internal/services"
)

// Request is the dispatch record handed to the detection worker. The worker
// reads it from the dispatch directory and writes its counting report and
// artifact into the results directory under the same job id.
type Request struct {
	JobID                 string  `json:"job_id"`
	SourcePath            string  `json:"source_path"`
	ResultsDir            string  `json:"results_dir"`
	SourceDurationSeconds float64 `json:"source_duration_seconds,omitempty"`
	MaxProcessingSeconds  int     `json:"max_processing_seconds"`
	MaxDetectionsPerFrame int     `json:"max_detections_per_frame"`
}

// Dispatcher hands jobs to the external detection worker.
type Dispatcher struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewDispatcher builds a dispatcher for the configured worker.
func NewDispatcher(cfg *config.Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "detector")),
	}
}

// Dispatch writes the worker request for a job and, when a worker command is
// configured, launches it. Dispatching the same job again overwrites the
// request file with identical content, so duplicate dispatches are harmless.
func (d *Dispatcher) Dispatch(ctx context.Context, job *queue.Job) (string, error) {
	if job == nil {
		return "", services.Wrap(services.ErrValidation, "detector", "dispatch", "job is required", nil)
	}
	if _, err := os.Stat(job.SourcePath); err != nil {
		return "", services.Wrap(services.ErrValidation, "detector", "dispatch", fmt.Sprintf("source video unavailable: %s", job.SourcePath), err)
	}

	request := Request{
		JobID:                 job.ID,
		SourcePath:            job.SourcePath,
		ResultsDir:            d.cfg.ResultsDir(),
		SourceDurationSeconds: job.SourceDurationSeconds,
		MaxProcessingSeconds:  d.cfg.Detector.MaxProcessingSeconds,
		MaxDetectionsPerFrame: d.cfg.Detector.MaxDetectionsPerFrame,
	}
	encoded, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "detector", "dispatch", "encode worker request", err)
	}

	requestPath := RequestPath(d.cfg, job.ID)
	if err := os.MkdirAll(filepath.Dir(requestPath), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "detector", "dispatch", "create dispatch directory", err)
	}
	if err := os.WriteFile(requestPath, encoded, 0o644); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "detector", "dispatch", "write worker request", err)
	}

	if d.cfg.Detector.Command != "" {
		if err := d.launchWorker(ctx, requestPath); err != nil {
			return "", err
		}
	}

	d.logger.Info("job dispatched to detection worker",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("request", requestPath))
	return requestPath, nil
}

// launchWorker starts the configured worker process without waiting for it.
// The workflow observes progress through the results directory, not the
// process exit.
func (d *Dispatcher) launchWorker(ctx context.Context, requestPath string) error {
	cmd := exec.CommandContext(ctx, d.cfg.Detector.Command, requestPath)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "detector", "dispatch", fmt.Sprintf("start worker %s", d.cfg.Detector.Command), err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			d.logger.Warn("detection worker exited with error", logging.Error(err))
		}
	}()
	return nil
}

// RequestPath returns the dispatch request file for a job.
func RequestPath(cfg *config.Config, jobID string) string {
	return filepath.Join(cfg.DispatchDir(), jobID+".json")
}
