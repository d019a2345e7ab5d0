package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lanecount/internal/config"
)

const userAgent = "Lanecount-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyJobReceived(ctx context.Context, jobID, sourceName string) error
	NotifyJobCompleted(ctx context.Context, jobID string, totalCounted, laneCount int) error
	NotifyJobFailed(ctx context.Context, jobID, detail string) error
	NotifyJobRepaired(ctx context.Context, jobID, fromStatus string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:    topic,
		client:      client,
		completions: cfg.Notifications.Completions,
		errors:      cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	completions bool
	errors      bool
}

func (n *ntfyService) NotifyJobReceived(ctx context.Context, jobID, sourceName string) error {
	sourceName = strings.TrimSpace(sourceName)
	if sourceName == "" {
		sourceName = "unknown source"
	}
	data := payload{
		title:   "Lanecount - Video Received",
		message: fmt.Sprintf("Video received for counting: %s (job %s)", sourceName, jobID),
		tags:    []string{"lanecount", "upload", "received"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobID string, totalCounted, laneCount int) error {
	if !n.completions {
		return nil
	}
	data := payload{
		title:    "Lanecount - Counting Complete",
		message:  fmt.Sprintf("Job %s finished: %d vehicles across %d lanes", jobID, totalCounted, laneCount),
		tags:     []string{"lanecount", "job", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobID, detail string) error {
	if !n.errors {
		return nil
	}
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = "no detail recorded"
	}
	data := payload{
		title:    "Lanecount - Job Failed",
		message:  fmt.Sprintf("Job %s failed: %s", jobID, detail),
		tags:     []string{"lanecount", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobRepaired(ctx context.Context, jobID, fromStatus string) error {
	data := payload{
		title:   "Lanecount - Job Repaired",
		message: fmt.Sprintf("Job %s reconciled from %s to completed", jobID, fromStatus),
		tags:    []string{"lanecount", "reconcile", "repaired"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Lanecount - Error",
		message:  builder.String(),
		tags:     []string{"lanecount", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Lanecount - Test",
		message:  "Notification system test",
		tags:     []string{"lanecount", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobReceived(context.Context, string, string) error    { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, int, int) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error      { return nil }
func (noopService) NotifyJobRepaired(context.Context, string, string) error    { return nil }
func (noopService) NotifyError(context.Context, error, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }
