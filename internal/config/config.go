package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	InboxDir    string `toml:"inbox_dir"`
	WorkDir     string `toml:"work_dir"`
	LogDir      string `toml:"log_dir"`
	LockfileDir string `toml:"lockfile_dir"`
}

// Storage contains configuration for the durable artifact store.
type Storage struct {
	Bucket          string `toml:"bucket"`
	Folder          string `toml:"folder"`
	ChunkSizeBytes  int    `toml:"chunk_size_bytes"`
	UploadTimeout   int    `toml:"upload_timeout"`
	CredentialsFile string `toml:"credentials_file"`
}

// Detector contains configuration for the external vehicle-detection worker.
type Detector struct {
	Command               string `toml:"command"`
	MaxProcessingSeconds  int    `toml:"max_processing_seconds"`
	MaxDetectionsPerFrame int    `toml:"max_detections_per_frame"`
}

// Retention contains configuration for stored video lifetime.
type Retention struct {
	WindowDays int `toml:"window_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completions    bool   `toml:"completions"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval      int `toml:"queue_poll_interval"`
	ErrorRetryInterval     int `toml:"error_retry_interval"`
	ReconcileSweepInterval int `toml:"reconcile_sweep_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lanecount.
//
// Configuration sections by subsystem:
//   - Paths: inbox, scratch/work, log, and lockfile directories
//   - Storage: artifact store bucket, chunking, and timeout settings
//   - Detector: external detection worker command and limits
//   - Retention: stored video lifetime used to derive job expiry
//   - Notifications: ntfy push notification settings
//   - Workflow: daemon polling intervals
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Detector      Detector      `toml:"detector"`
	Retention     Retention     `toml:"retention"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lanecount/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lanecount.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.InboxDir,
		c.Paths.WorkDir,
		c.Paths.LogDir,
		c.Paths.LockfileDir,
		c.DispatchDir(),
		c.ResultsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DispatchDir returns the directory where worker dispatch requests are written.
func (c *Config) DispatchDir() string {
	return filepath.Join(c.Paths.WorkDir, "dispatch")
}

// ResultsDir returns the directory the detection worker writes artifacts into.
func (c *Config) ResultsDir() string {
	return filepath.Join(c.Paths.WorkDir, "results")
}

// RetentionWindow returns the configured retention window as a duration.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.Retention.WindowDays) * 24 * time.Hour
}

// MaxProcessingDuration returns the ceiling for detector runtime before a job
// is considered timed out.
func (c *Config) MaxProcessingDuration() time.Duration {
	return time.Duration(c.Detector.MaxProcessingSeconds) * time.Second
}

// UploadTimeout returns the per-upload ceiling for artifact store transfers.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Storage.UploadTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
