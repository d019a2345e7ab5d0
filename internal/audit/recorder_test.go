package audit_test

import (
	"context"
	"testing"
	"time"

	"lanecount/internal/audit"
	"lanecount/internal/testsupport"
)

func TestRecordBuildsOrderedHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	recorder := audit.NewRecorder(store, nil)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")

	recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionUpload, "video received", nil)
	recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionProcessing, "dispatched to worker", nil)
	recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionCompleted, "counting finished", map[string]string{"total": "12"})

	history, err := recorder.JobHistory(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 events, got %d", len(history))
	}
	want := []string{audit.ActionUpload, audit.ActionProcessing, audit.ActionCompleted}
	for i, action := range want {
		if history[i].ActionType != action {
			t.Fatalf("event %d: expected %s, got %s", i, action, history[i].ActionType)
		}
	}
	if history[2].Metadata["total"] != "12" {
		t.Fatalf("expected metadata preserved, got %+v", history[2].Metadata)
	}
}

func TestRecordSuppressesVerbatimDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	recorder := audit.NewRecorder(store, nil)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")

	meta := map[string]string{"total": "12"}
	recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionCompleted, "counting finished", meta)
	recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionCompleted, "counting finished", meta)

	history, err := recorder.JobHistory(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected duplicate suppressed, got %d events", len(history))
	}

	// A changed detail is a new entry, not a duplicate.
	recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionCompleted, "counting finished", map[string]string{"total": "13"})
	history, err = recorder.JobHistory(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 events after changed metadata, got %d", len(history))
	}
}

func TestSummaryUsesTrailingWindow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	recorder := audit.NewRecorder(store, nil)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")
	recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionUpload, "video received", nil)
	recorder.Record(ctx, job.ID, job.OwnerID, audit.ActionViewed, "result viewed", nil)

	summary, err := recorder.Summary(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	actions := make(map[string]int, len(summary))
	for _, row := range summary {
		actions[row.ActionType] = row.Count
	}
	if actions[audit.ActionUpload] != 1 || actions[audit.ActionViewed] != 1 {
		t.Fatalf("unexpected summary %+v", actions)
	}
}
