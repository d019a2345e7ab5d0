package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"lanecount/internal/config"
	"lanecount/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobCompleted(context.Background(), "job-1", 12, 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsMessages(t *testing.T) {
	var captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = string(body)
		_ = r.Body.Close()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.Completions = true
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyJobCompleted(context.Background(), "job-1", 12, 3); err != nil {
		t.Fatalf("NotifyJobCompleted: %v", err)
	}
	if captured.title != "Lanecount - Counting Complete" {
		t.Fatalf("unexpected title %q", captured.title)
	}
	if captured.body != "Job job-1 finished: 12 vehicles across 3 lanes" {
		t.Fatalf("unexpected message %q", captured.body)
	}
	if captured.tags != "lanecount,job,completed" {
		t.Fatalf("unexpected tags %q", captured.tags)
	}
	if captured.priority != "high" {
		t.Fatalf("unexpected priority %q", captured.priority)
	}

	if err := svc.NotifyJobRepaired(context.Background(), "job-1", "failed"); err != nil {
		t.Fatalf("NotifyJobRepaired: %v", err)
	}
	if captured.body != "Job job-1 reconciled from failed to completed" {
		t.Fatalf("unexpected message %q", captured.body)
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completions = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyJobCompleted(context.Background(), "job-1", 12, 3); err != nil {
		t.Fatalf("expected suppressed completion to return nil, got %v", err)
	}
	if err := svc.NotifyJobFailed(context.Background(), "job-1", "detector crashed"); err != nil {
		t.Fatalf("expected suppressed failure to return nil, got %v", err)
	}
}
