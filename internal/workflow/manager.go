package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lanecount/internal/audit"
	"lanecount/internal/config"
	"lanecount/internal/detector"
	"lanecount/internal/logging"
	"lanecount/internal/notifications"
	"lanecount/internal/queue"
	"lanecount/internal/reconcile"
	"lanecount/internal/storage"
)

// Manager coordinates the counting pipeline. It dispatches uploaded jobs to
// the detection worker, ingests finished counting reports, fails jobs whose
// worker went silent, and periodically sweeps stuck jobs through the
// reconciler.
type Manager struct {
	cfg        *config.Config
	store      *queue.Store
	logger     *slog.Logger
	notifier   notifications.Service
	dispatcher *detector.Dispatcher
	uploader   storage.Uploader
	reconciler *reconcile.Reconciler
	recorder   *audit.Recorder

	pollInterval  time.Duration
	errorRetry    time.Duration
	sweepInterval time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager with the default notifier.
func NewManager(cfg *config.Config, store *queue.Store, uploader storage.Uploader, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, uploader, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom
// notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, uploader storage.Uploader, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	recorder := audit.NewRecorder(store, logger)
	return &Manager{
		cfg:           cfg,
		store:         store,
		logger:        logger.With(logging.String(logging.FieldComponent, "workflow")),
		notifier:      notifier,
		dispatcher:    detector.NewDispatcher(cfg, logger),
		uploader:      uploader,
		reconciler:    reconcile.NewReconciler(cfg, store, uploader, recorder, logger),
		recorder:      recorder,
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetry:    time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		sweepInterval: time.Duration(cfg.Workflow.ReconcileSweepInterval) * time.Second,
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// LastError returns the most recent lane error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Running reports whether background processing is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
