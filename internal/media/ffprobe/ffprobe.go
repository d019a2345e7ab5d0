// Package ffprobe inspects video files via the ffprobe binary and extracts
// the source metadata recorded on counting jobs.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Info carries the probe fields relevant to job registration.
type Info struct {
	DurationSeconds float64
	Width           int
	Height          int
}

// Resolution returns "WIDTHxHEIGHT", or empty when no video stream was found.
func (i Info) Resolution() string {
	if i.Width <= 0 || i.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", i.Width, i.Height)
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
// The first video stream determines the resolution.
func Inspect(ctx context.Context, binary string, path string) (Info, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Info{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var decoded probeOutput
	if err := json.Unmarshal(output, &decoded); err != nil {
		return Info{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	info := Info{}
	if raw := strings.TrimSpace(decoded.Format.Duration); raw != "" {
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds > 0 {
			info.DurationSeconds = seconds
		}
	}
	for _, stream := range decoded.Streams {
		if stream.CodecType == "video" && stream.Width > 0 && stream.Height > 0 {
			info.Width = stream.Width
			info.Height = stream.Height
			break
		}
	}
	return info, nil
}
