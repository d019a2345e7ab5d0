package ffprobe

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolution(t *testing.T) {
	if got := (Info{Width: 1920, Height: 1080}).Resolution(); got != "1920x1080" {
		t.Fatalf("resolution = %q", got)
	}
	if got := (Info{}).Resolution(); got != "" {
		t.Fatalf("empty info should have no resolution, got %q", got)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestInspectParsesStubOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}

	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe-stub")
	script := `#!/bin/sh
cat <<'EOF'
{
  "streams": [
    {"codec_type": "audio"},
    {"codec_type": "video", "width": 1280, "height": 720}
  ],
  "format": {"duration": "42.500000"}
}
EOF
`
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	info, err := Inspect(context.Background(), stub, filepath.Join(dir, "clip.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	if info.DurationSeconds != 42.5 {
		t.Fatalf("duration = %v", info.DurationSeconds)
	}
	if info.Resolution() != "1280x720" {
		t.Fatalf("resolution = %q", info.Resolution())
	}
}
