package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lanecount/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InboxDir = filepath.Join(base, "inbox")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockfileDir = filepath.Join(base, "locks")
	cfgVal.Storage.Bucket = "lanecount-test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBucket overrides the artifact storage bucket on the test config.
func WithBucket(bucket string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Bucket = bucket
	}
}

// WithRetentionWindow overrides the retention window on the test config.
func WithRetentionWindow(days int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retention.WindowDays = days
	}
}

// WithStubbedDetector writes a stub detector executable and points the
// config's detector command at it.
func WithStubbedDetector() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "detector")
		if err := os.WriteFile(target, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			b.t.Fatalf("write stub detector: %v", err)
		}
		b.cfg.Detector.Command = target
	}
}

// WithProcessingTimeout overrides the maximum processing time on the test
// config.
func WithProcessingTimeout(d time.Duration) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detector.MaxProcessingSeconds = int(d / time.Second)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InboxDir)
}
