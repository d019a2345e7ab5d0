package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.InboxDir == "" {
		return errors.New("paths.inbox_dir must be set")
	}
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Bucket == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/lanecount/config.toml"
		}
		return fmt.Errorf("storage.bucket is required. Set LANECOUNT_STORAGE_BUCKET env var or edit %s (create with 'lanecount config init')", defaultPath)
	}
	if c.Storage.ChunkSizeBytes < 256*1024 {
		return errors.New("storage.chunk_size_bytes must be at least 262144 (256 KiB)")
	}
	return nil
}

func (c *Config) validateDetector() error {
	if c.Detector.MaxProcessingSeconds < 60 {
		return errors.New("detector.max_processing_seconds must be at least 60")
	}
	if c.Detector.MaxDetectionsPerFrame < 1 {
		return errors.New("detector.max_detections_per_frame must be positive")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.WindowDays < 1 {
		return errors.New("retention.window_days must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
