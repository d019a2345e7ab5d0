package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeDetector()
	c.normalizeNotifications()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockfileDir) == "" {
		c.Paths.LockfileDir = defaultLockfileDir
	}
	if c.Paths.LockfileDir, err = expandPath(c.Paths.LockfileDir); err != nil {
		return fmt.Errorf("paths.lockfile_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		if value, ok := os.LookupEnv("LANECOUNT_STORAGE_BUCKET"); ok {
			c.Storage.Bucket = strings.TrimSpace(value)
		}
	}
	c.Storage.Folder = strings.Trim(strings.TrimSpace(c.Storage.Folder), "/")
	if c.Storage.Folder == "" {
		c.Storage.Folder = defaultStorageFolder
	}
	if c.Storage.ChunkSizeBytes <= 0 {
		c.Storage.ChunkSizeBytes = defaultStorageChunkSizeBytes
	}
	if c.Storage.UploadTimeout <= 0 {
		c.Storage.UploadTimeout = defaultStorageUploadTimeout
	}
	if strings.TrimSpace(c.Storage.CredentialsFile) != "" {
		expanded, err := expandPath(c.Storage.CredentialsFile)
		if err != nil {
			return fmt.Errorf("storage.credentials_file: %w", err)
		}
		c.Storage.CredentialsFile = expanded
	}
	return nil
}

func (c *Config) normalizeDetector() {
	c.Detector.Command = strings.TrimSpace(c.Detector.Command)
	if c.Detector.MaxProcessingSeconds <= 0 {
		c.Detector.MaxProcessingSeconds = defaultMaxProcessingSeconds
	}
	if c.Detector.MaxDetectionsPerFrame <= 0 {
		c.Detector.MaxDetectionsPerFrame = defaultMaxDetectionsPerFrame
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.ReconcileSweepInterval <= 0 {
		c.Workflow.ReconcileSweepInterval = defaultReconcileSweepInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
