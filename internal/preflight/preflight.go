package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"lanecount/internal/config"
	"lanecount/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Failures are advisory: the daemon still starts, but logs what is missing.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Lockfile directory", cfg.Paths.LockfileDir),
		CheckStorage(cfg),
	}

	for _, status := range CheckBinaries(cfg) {
		result := Result{Name: status.Name, Passed: status.Available}
		switch {
		case status.Available:
			result.Detail = status.Path
		case status.Optional:
			result.Passed = true
			result.Detail = status.Detail + " (optional)"
		default:
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStorage validates the artifact store configuration without performing
// a network round trip.
func CheckStorage(cfg *config.Config) Result {
	const name = "Artifact storage"

	if strings.TrimSpace(cfg.Storage.Bucket) == "" {
		return Result{Name: name, Detail: "bucket not configured"}
	}
	if credentials := strings.TrimSpace(cfg.Storage.CredentialsFile); credentials != "" {
		if _, err := os.Stat(credentials); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("credentials file %s: %v", credentials, err)}
		}
	}
	return Result{Name: name, Passed: true, Detail: "bucket " + cfg.Storage.Bucket}
}

// CheckBinaries evaluates the external binaries the pipeline shells out to.
// The detection worker is only required when configured; ffprobe is optional
// because job registration falls back to operator-supplied metadata.
func CheckBinaries(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFprobe",
			Command:     "ffprobe",
			Description: "Probes source video duration and resolution",
			Optional:    true,
		},
	}
	if strings.TrimSpace(cfg.Detector.Command) != "" {
		requirements = append(requirements, deps.Requirement{
			Name:        "Detection worker",
			Command:     cfg.Detector.Command,
			Description: "Processes dispatched videos into counting reports",
		})
	}
	return deps.CheckAll(requirements)
}
