package testsupport

import (
	"context"
	"testing"
	"time"

	"lanecount/internal/config"
	"lanecount/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates an uploaded job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, ownerID, sourcePath string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		OwnerID:         ownerID,
		SourcePath:      sourcePath,
		DurationSeconds: 60,
		SizeBytes:       1 << 20,
		Resolution:      "1920x1080",
		RetentionWindow: 30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
