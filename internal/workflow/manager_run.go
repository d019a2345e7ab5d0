package workflow

import (
	"context"
	"errors"
	"time"

	"lanecount/internal/logging"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(3)
	m.mu.Unlock()

	go m.runDispatchLane(runCtx)
	go m.runIngestLane(runCtx)
	go m.runSweepLane(runCtx)

	m.logger.Info("workflow started")
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// runDispatchLane hands uploaded jobs to the detection worker.
func (m *Manager) runDispatchLane(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		advanced, err := m.dispatchNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			m.logger.Error("dispatch lane error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "dispatch_failed"))
			m.waitOrShutdown(ctx, m.errorRetry)
			continue
		}
		if !advanced {
			m.waitOrShutdown(ctx, m.pollInterval)
		}
	}
}

// runIngestLane collects worker output and completes or times out
// processing jobs.
func (m *Manager) runIngestLane(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		advanced, err := m.ingestNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			m.logger.Error("ingest lane error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ingest_failed"))
			m.waitOrShutdown(ctx, m.errorRetry)
			continue
		}
		if !advanced {
			m.waitOrShutdown(ctx, m.pollInterval)
		}
	}
}

// runSweepLane periodically reconciles stuck jobs and prunes expired ones.
func (m *Manager) runSweepLane(ctx context.Context) {
	defer m.wg.Done()
	if m.sweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		m.sweep(ctx)
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
