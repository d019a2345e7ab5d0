package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lanecount/internal/queue"
	"lanecount/internal/testsupport"
)

func TestAuditEventsKeepInsertionOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")

	stamp := time.Now().UTC().Truncate(time.Second)
	actions := []string{"upload", "processing", "completed"}
	for _, action := range actions {
		err := store.AppendAuditEvent(ctx, queue.AuditEvent{
			JobID:       job.ID,
			OwnerID:     job.OwnerID,
			ActionType:  action,
			Description: action + " recorded",
			CreatedAt:   stamp,
		})
		if err != nil {
			t.Fatalf("AppendAuditEvent %s: %v", action, err)
		}
	}

	events, err := store.AuditEventsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("AuditEventsForJob: %v", err)
	}
	if len(events) != len(actions) {
		t.Fatalf("expected %d events, got %d", len(actions), len(events))
	}
	for i, action := range actions {
		if events[i].ActionType != action {
			t.Fatalf("event %d: expected %s, got %s", i, action, events[i].ActionType)
		}
	}
}

func TestAuditEventMetadataRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")
	err := store.AppendAuditEvent(ctx, queue.AuditEvent{
		JobID:      job.ID,
		ActionType: "completed",
		Metadata:   map[string]string{"total": "12", "lanes": "3"},
	})
	if err != nil {
		t.Fatalf("AppendAuditEvent: %v", err)
	}

	events, err := store.AuditEventsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("AuditEventsForJob: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Metadata["total"] != "12" || events[0].Metadata["lanes"] != "3" {
		t.Fatalf("metadata mismatch: %+v", events[0].Metadata)
	}
	if events[0].CreatedAt.IsZero() {
		t.Fatal("expected defaulted creation timestamp")
	}
}

func TestAppendAuditEventValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	err := store.AppendAuditEvent(ctx, queue.AuditEvent{ActionType: "upload"})
	if !errors.Is(err, queue.ErrIncompleteEvidence) {
		t.Fatalf("expected ErrIncompleteEvidence without job id, got %v", err)
	}
	err = store.AppendAuditEvent(ctx, queue.AuditEvent{JobID: "job-1"})
	if !errors.Is(err, queue.ErrIncompleteEvidence) {
		t.Fatalf("expected ErrIncompleteEvidence without action type, got %v", err)
	}
}

func TestLatestAuditEvent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")

	latest, err := store.LatestAuditEvent(ctx, job.ID, "completed")
	if err != nil {
		t.Fatalf("LatestAuditEvent: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected no event yet, got %+v", latest)
	}

	base := time.Now().UTC()
	for i, desc := range []string{"first", "second"} {
		err := store.AppendAuditEvent(ctx, queue.AuditEvent{
			JobID:       job.ID,
			ActionType:  "completed",
			Description: desc,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendAuditEvent: %v", err)
		}
	}

	latest, err = store.LatestAuditEvent(ctx, job.ID, "completed")
	if err != nil {
		t.Fatalf("LatestAuditEvent: %v", err)
	}
	if latest == nil || latest.Description != "second" {
		t.Fatalf("expected the most recent event, got %+v", latest)
	}
}

func TestAuditSummaryGroupsByAction(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner-1", "/videos/a.mp4")
	now := time.Now().UTC()

	entries := []struct {
		action string
		at     time.Time
	}{
		{"upload", now.Add(-2 * time.Hour)},
		{"completed", now.Add(-time.Hour)},
		{"completed", now.Add(-30 * time.Minute)},
		{"upload", now.Add(-40 * 24 * time.Hour)},
	}
	for _, entry := range entries {
		err := store.AppendAuditEvent(ctx, queue.AuditEvent{
			JobID:      job.ID,
			ActionType: entry.action,
			CreatedAt:  entry.at,
		})
		if err != nil {
			t.Fatalf("AppendAuditEvent: %v", err)
		}
	}

	summary, err := store.AuditSummary(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("AuditSummary: %v", err)
	}
	byAction := make(map[string]queue.AuditSummaryRow, len(summary))
	for _, row := range summary {
		byAction[row.ActionType] = row
	}
	if byAction["completed"].Count != 2 {
		t.Fatalf("expected 2 completed entries, got %+v", byAction["completed"])
	}
	if byAction["upload"].Count != 1 {
		t.Fatalf("expected entries outside the window excluded, got %+v", byAction["upload"])
	}
	if !byAction["completed"].LastSeen.After(byAction["completed"].FirstSeen) {
		t.Fatalf("expected ordered window bounds, got %+v", byAction["completed"])
	}
}
