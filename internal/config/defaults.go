package config

const (
	defaultInboxDir    = "~/.local/share/lanecount/inbox"
	defaultWorkDir     = "~/.local/share/lanecount/work"
	defaultLogDir      = "~/.local/share/lanecount/logs"
	defaultLockfileDir = "~/.local/share/lanecount"

	defaultStorageFolder         = "traffic-videos"
	defaultStorageChunkSizeBytes = 6 * 1024 * 1024
	defaultStorageUploadTimeout  = 600

	defaultMaxProcessingSeconds  = 1800
	defaultMaxDetectionsPerFrame = 32

	defaultRetentionWindowDays = 30

	defaultNotifyRequestTimeout = 10

	defaultQueuePollInterval      = 5
	defaultErrorRetryInterval     = 10
	defaultReconcileSweepInterval = 300

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:    defaultInboxDir,
			WorkDir:     defaultWorkDir,
			LogDir:      defaultLogDir,
			LockfileDir: defaultLockfileDir,
		},
		Storage: Storage{
			Folder:         defaultStorageFolder,
			ChunkSizeBytes: defaultStorageChunkSizeBytes,
			UploadTimeout:  defaultStorageUploadTimeout,
		},
		Detector: Detector{
			MaxProcessingSeconds:  defaultMaxProcessingSeconds,
			MaxDetectionsPerFrame: defaultMaxDetectionsPerFrame,
		},
		Retention: Retention{
			WindowDays: defaultRetentionWindowDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completions:    true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:      defaultQueuePollInterval,
			ErrorRetryInterval:     defaultErrorRetryInterval,
			ReconcileSweepInterval: defaultReconcileSweepInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
