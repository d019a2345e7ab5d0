package workflow

import (
	"context"

	"lanecount/internal/queue"
)

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	Running bool
	Queue   queue.HealthSummary
	LastErr string
}

// Status reports the manager's current state and queue totals.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	health, err := m.store.Health(ctx)
	if err != nil {
		return Status{}, err
	}
	status := Status{
		Running: m.Running(),
		Queue:   health,
	}
	if err := m.LastError(); err != nil {
		status.LastErr = err.Error()
	}
	return status, nil
}
