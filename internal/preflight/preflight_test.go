package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lanecount/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := CheckDirectoryAccess("Work directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for writable dir: %s", result.Detail)
	}

	result = CheckDirectoryAccess("Work directory", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result = CheckDirectoryAccess("Work directory", file)
	if result.Passed {
		t.Fatal("expected failure for non-directory")
	}
}

func TestCheckStorage(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	result := CheckStorage(cfg)
	if !result.Passed {
		t.Fatalf("expected pass with bucket configured: %s", result.Detail)
	}

	cfg.Storage.Bucket = ""
	if result := CheckStorage(cfg); result.Passed {
		t.Fatal("expected failure without bucket")
	}

	cfg.Storage.Bucket = "bucket"
	cfg.Storage.CredentialsFile = filepath.Join(t.TempDir(), "absent.json")
	if result := CheckStorage(cfg); result.Passed {
		t.Fatal("expected failure for missing credentials file")
	}
}

func TestRunAllCoversDirectoriesAndStorage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) < 5 {
		t.Fatalf("expected directory, storage, and binary checks, got %d results", len(results))
	}
	for _, result := range results[:5] {
		if !result.Passed {
			t.Fatalf("check %s failed: %s", result.Name, result.Detail)
		}
	}
}
