package main

import (
	"fmt"
	"io"
	"time"

	"lanecount/internal/queue"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiBlue   = "\x1b[34m"
)

func statusLabel(writer io.Writer, status queue.Status) string {
	label := string(status)
	if !isTerminal(writer) {
		return label
	}
	switch status {
	case queue.StatusCompleted:
		return ansiGreen + label + ansiReset
	case queue.StatusProcessing:
		return ansiBlue + label + ansiReset
	case queue.StatusUploaded:
		return ansiYellow + label + ansiReset
	case queue.StatusFailed:
		return ansiRed + label + ansiReset
	default:
		return label
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
