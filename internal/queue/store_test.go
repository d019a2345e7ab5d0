package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lanecount/internal/queue"
	"lanecount/internal/testsupport"
)

func TestNewJobDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		OwnerID:         "owner-1",
		SourcePath:      "/videos/cam-04/morning.mp4",
		DurationSeconds: 183.5,
		SizeBytes:       42 << 20,
		Resolution:      "1280x720",
		RetentionWindow: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected generated job id")
	}
	if job.Status != queue.StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", job.Status)
	}
	if job.Result != nil {
		t.Fatal("new job must not carry a counting result")
	}
	if job.DispatchedAt != nil || job.CompletedAt != nil {
		t.Fatal("new job must not carry dispatch or completion timestamps")
	}
	if !job.ExpiresAt.After(time.Now().Add(23 * time.Hour)) {
		t.Fatalf("expected expiry about a day out, got %s", job.ExpiresAt)
	}

	loaded, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.OwnerID != "owner-1" || loaded.SourcePath != job.SourcePath {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if loaded.SourceDurationSeconds != 183.5 || loaded.SourceSizeBytes != 42<<20 {
		t.Fatalf("source metadata mismatch: %+v", loaded)
	}
}

func TestGetByIDMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.GetByID(context.Background(), "no-such-job"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")
	second := testsupport.NewJob(t, store, "owner-1", "/videos/b.mp4")

	if _, err := store.MarkProcessing(ctx, second.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	uploaded, err := store.List(ctx, queue.StatusUploaded)
	if err != nil {
		t.Fatalf("List uploaded: %v", err)
	}
	if len(uploaded) != 1 || uploaded[0].ID != first.ID {
		t.Fatalf("expected only first job uploaded, got %d jobs", len(uploaded))
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}
}

func TestNextForStatusesReturnsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")
	testsupport.NewJob(t, store, "owner-1", "/videos/b.mp4")

	next, err := store.NextForStatuses(ctx, queue.StatusUploaded)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest uploaded job %s, got %+v", first.ID, next)
	}

	none, err := store.NextForStatuses(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no failed jobs, got %+v", none)
	}
}

func TestStatsCountsPerStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")
	processing := testsupport.NewJob(t, store, "owner-1", "/videos/b.mp4")
	if _, err := store.MarkProcessing(ctx, processing.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusUploaded] != 1 || stats[queue.StatusProcessing] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestListExpiredExcludesLiveJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	expired, err := store.NewJob(ctx, queue.NewJobParams{
		OwnerID:         "owner-1",
		SourcePath:      "/videos/old.mp4",
		RetentionWindow: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	live := testsupport.NewJob(t, store, "owner-1", "/videos/new.mp4")

	jobs, err := store.ListExpired(ctx, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ListExpired: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != expired.ID {
		t.Fatalf("expected only the expired job, got %d jobs", len(jobs))
	}
	for _, job := range jobs {
		if job.ID == live.ID {
			t.Fatal("live job reported as expired")
		}
	}
}

func TestRemoveRefusesProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")
	if _, err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.Remove(ctx, job.ID); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := store.Fail(ctx, job.ID, "detector crashed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := store.Remove(ctx, job.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.GetByID(ctx, job.ID); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestCheckHealthFlagsOverdueProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")
	if _, err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	health, err := store.CheckHealth(ctx, -time.Minute)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if health.Healthy {
		t.Fatal("expected unhealthy report for overdue processing job")
	}
	if len(health.Warnings) == 0 {
		t.Fatal("expected at least one warning")
	}

	health, err = store.CheckHealth(ctx, time.Hour)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.Healthy {
		t.Fatalf("expected healthy report, got warnings %v", health.Warnings)
	}
}
