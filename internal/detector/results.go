package detector

import (
	"os"
	"path/filepath"

	"lanecount/internal/config"
	"lanecount/internal/counting"
)

// ResultPath returns where the worker writes a job's counting report.
func ResultPath(cfg *config.Config, jobID string) string {
	return filepath.Join(cfg.ResultsDir(), jobID+".json")
}

// HasResult reports whether the worker has produced a counting report for
// the job.
func HasResult(cfg *config.Config, jobID string) bool {
	info, err := os.Stat(ResultPath(cfg, jobID))
	return err == nil && !info.IsDir()
}

// LoadResult reads and decodes the worker's counting report for a job.
func LoadResult(cfg *config.Config, jobID string) (*counting.Payload, error) {
	return counting.LoadPayload(ResultPath(cfg, jobID))
}

// ProbeArtifact locates the processed video the worker produced for a job.
// Workers emit <job>.out.mp4 and may additionally emit a
// compatibility-encoded <job>.compat.mp4; the compatibility variant wins
// when both exist. Returns an empty string when no artifact exists yet.
func ProbeArtifact(cfg *config.Config, jobID string) string {
	candidates := []string{
		filepath.Join(cfg.ResultsDir(), jobID+".compat.mp4"),
		filepath.Join(cfg.ResultsDir(), jobID+".out.mp4"),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Size() > 0 {
			return candidate
		}
	}
	return ""
}

// CleanupJob removes a job's dispatch request, counting report, and local
// artifacts after the pipeline has secured them elsewhere.
func CleanupJob(cfg *config.Config, jobID string) error {
	paths := []string{
		RequestPath(cfg, jobID),
		ResultPath(cfg, jobID),
		filepath.Join(cfg.ResultsDir(), jobID+".compat.mp4"),
		filepath.Join(cfg.ResultsDir(), jobID+".out.mp4"),
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
