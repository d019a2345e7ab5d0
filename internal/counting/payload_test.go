package counting_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lanecount/internal/counting"
)

func validPayload() *counting.Payload {
	return &counting.Payload{
		JobID:              "job-1",
		FrameCount:         900,
		AccuracyEstimate:   0.93,
		LinePositionPixels: 540,
		DeclaredTotal:      15,
		DeclaredLanes: map[string]counting.DeclaredLane{
			"left":  {Total: 10, Classes: map[string]int{"car": 8, "bus": 1, "truck": 1}},
			"right": {Total: 5, Classes: map[string]int{"car": 4, "truck": 1}},
		},
		Events: buildEvents(map[string][]string{
			"left":  {"car", "car", "car", "car", "car", "car", "car", "car", "bus", "truck"},
			"right": {"car", "car", "car", "car", "truck"},
		}),
	}
}

func buildEvents(perLane map[string][]string) []counting.CrossingEvent {
	var events []counting.CrossingEvent
	i := 0
	for _, lane := range []string{"left", "right"} {
		for _, class := range perLane[lane] {
			events = append(events, counting.CrossingEvent{
				Identity: "t-" + lane + "-" + class + "-" + string(rune('a'+i)),
				Lane:     lane,
				Class:    class,
				Frame:    i * 3,
			})
			i++
		}
	}
	return events
}

func TestIngestReproducesDeclaredCounts(t *testing.T) {
	result, err := counting.Ingest(validPayload(), 32)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.TotalCounted != 15 {
		t.Fatalf("expected total 15, got %d", result.TotalCounted)
	}
	if result.Lanes["left"].Total != 10 || result.Lanes["right"].Total != 5 {
		t.Fatalf("unexpected lane totals: %#v", result.Lanes)
	}
	if result.LinePositionPixels != 540 {
		t.Fatalf("expected line position preserved, got %d", result.LinePositionPixels)
	}
	if len(result.CountedIdentities) != 15 {
		t.Fatalf("expected 15 identities, got %d", len(result.CountedIdentities))
	}
}

func TestIngestIsDeterministic(t *testing.T) {
	first, err := counting.Ingest(validPayload(), 32)
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	second, err := counting.Ingest(validPayload(), 32)
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("identical payloads should produce equal results")
	}
}

func TestIngestRejectsLaneSumMismatch(t *testing.T) {
	payload := validPayload()
	lane := payload.DeclaredLanes["left"]
	lane.Total = 11
	payload.DeclaredLanes["left"] = lane

	_, err := counting.Ingest(payload, 32)
	var malformed *counting.MalformedResultError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResultError, got %v", err)
	}
}

func TestIngestRejectsNegativeCounts(t *testing.T) {
	payload := validPayload()
	payload.DeclaredLanes["left"] = counting.DeclaredLane{
		Total:   -1,
		Classes: map[string]int{"car": -1},
	}

	_, err := counting.Ingest(payload, 32)
	var malformed *counting.MalformedResultError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResultError, got %v", err)
	}
}

func TestIngestRejectsDeclaredTotalMismatch(t *testing.T) {
	payload := validPayload()
	// Duplicate every event; dedup keeps the count at 15, so a declared total
	// of 30 must be rejected as inconsistent.
	payload.Events = append(payload.Events, payload.Events...)
	payload.DeclaredTotal = 30

	_, err := counting.Ingest(payload, 32)
	var malformed *counting.MalformedResultError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResultError, got %v", err)
	}
}

func TestIngestAcceptsDuplicatedEvents(t *testing.T) {
	payload := validPayload()
	payload.Events = append(payload.Events, payload.Events...)

	result, err := counting.Ingest(payload, 32)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.TotalCounted != 15 {
		t.Fatalf("expected dedup to keep total at 15, got %d", result.TotalCounted)
	}
}

func TestIngestRejectsEmptyEvents(t *testing.T) {
	payload := validPayload()
	payload.Events = nil

	_, err := counting.Ingest(payload, 32)
	var malformed *counting.MalformedResultError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResultError for empty events, got %v", err)
	}
}

func TestLoadPayloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job-1.json")
	data := []byte(`{
		"job_id": "job-1",
		"frame_count": 10,
		"accuracy": 0.8,
		"line_position": 320,
		"total": 1,
		"lanes": {"left": {"total": 1, "classes": {"car": 1}}},
		"events": [{"identity": "t-1", "lane": "left", "class": "car", "frame": 4}]
	}`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	payload, err := counting.LoadPayload(path)
	if err != nil {
		t.Fatalf("LoadPayload failed: %v", err)
	}
	if payload.JobID != "job-1" || payload.LinePositionPixels != 320 {
		t.Fatalf("unexpected payload: %#v", payload)
	}

	result, err := counting.Ingest(payload, 32)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.TotalCounted != 1 {
		t.Fatalf("expected total 1, got %d", result.TotalCounted)
	}
}

func TestParsePayloadRejectsBadJSON(t *testing.T) {
	_, err := counting.ParsePayload([]byte("{not json"))
	var malformed *counting.MalformedResultError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResultError, got %v", err)
	}
}
