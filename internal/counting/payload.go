package counting

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// DeclaredLane is the per-lane summary the detector reports alongside its
// event stream.
type DeclaredLane struct {
	Total   int            `json:"total"`
	Classes map[string]int `json:"classes"`
}

// Payload is the results artifact the external detection worker writes, keyed
// by job identifier. The declared totals are the worker's own summary; the
// event stream is authoritative and the two must agree after deduplication.
type Payload struct {
	JobID              string                  `json:"job_id"`
	FrameCount         int                     `json:"frame_count"`
	AccuracyEstimate   float64                 `json:"accuracy"`
	LinePositionPixels int                     `json:"line_position"`
	DeclaredTotal      int                     `json:"total"`
	DeclaredLanes      map[string]DeclaredLane `json:"lanes"`
	Events             []CrossingEvent         `json:"events"`
}

// ParsePayload decodes a results payload from raw JSON.
func ParsePayload(data []byte) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &MalformedResultError{Reasons: []string{fmt.Sprintf("decode payload: %v", err)}}
	}
	return &payload, nil
}

// LoadPayload reads and decodes a results payload file.
func LoadPayload(path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results payload: %w", err)
	}
	return ParsePayload(data)
}

// Ingest runs the payload's event stream through the deduplicating aggregator
// and validates the outcome against the worker's declared totals. Identical
// payloads always produce equal Results, making re-ingestion idempotent.
func Ingest(payload *Payload, maxDetectionsPerFrame int) (*Result, error) {
	if payload == nil {
		return nil, &MalformedResultError{Reasons: []string{"payload is empty"}}
	}

	var reasons []string
	reasons = append(reasons, payload.structuralReasons()...)
	if len(reasons) > 0 {
		return nil, &MalformedResultError{Reasons: reasons}
	}

	agg := NewAggregator()
	for _, event := range payload.Events {
		agg.Observe(event)
	}

	result, err := agg.Finalize(Metadata{
		LinePositionPixels:    payload.LinePositionPixels,
		FrameCount:            payload.FrameCount,
		AccuracyEstimate:      payload.AccuracyEstimate,
		MaxDetectionsPerFrame: maxDetectionsPerFrame,
	})
	if err != nil {
		return nil, err
	}

	if payload.DeclaredTotal != result.TotalCounted {
		reasons = append(reasons, fmt.Sprintf(
			"declared total %d disagrees with deduplicated identity count %d",
			payload.DeclaredTotal, result.TotalCounted))
	}
	reasons = append(reasons, compareLanes(payload.DeclaredLanes, result.Lanes)...)
	if len(reasons) > 0 {
		return nil, &MalformedResultError{Reasons: reasons}
	}
	return result, nil
}

func (p *Payload) structuralReasons() []string {
	var reasons []string
	if len(p.Events) == 0 {
		reasons = append(reasons, "payload has no crossing events")
	}
	if p.FrameCount < 0 {
		reasons = append(reasons, fmt.Sprintf("frame count %d is negative", p.FrameCount))
	}
	if p.DeclaredTotal < 0 {
		reasons = append(reasons, fmt.Sprintf("declared total %d is negative", p.DeclaredTotal))
	}
	for _, lane := range sortedLaneNames(p.DeclaredLanes) {
		declared := p.DeclaredLanes[lane]
		if declared.Total < 0 {
			reasons = append(reasons, fmt.Sprintf("lane %q total %d is negative", lane, declared.Total))
			continue
		}
		sum := 0
		for class, n := range declared.Classes {
			if n < 0 {
				reasons = append(reasons, fmt.Sprintf("lane %q class %q count %d is negative", lane, class, n))
			}
			sum += n
		}
		if sum != declared.Total {
			reasons = append(reasons, fmt.Sprintf("lane %q total %d does not equal class sum %d", lane, declared.Total, sum))
		}
	}
	return reasons
}

func compareLanes(declared map[string]DeclaredLane, counted map[string]LaneCount) []string {
	var reasons []string
	for _, lane := range sortedLaneNames(declared) {
		want := declared[lane]
		got, ok := counted[lane]
		if !ok {
			if want.Total == 0 {
				continue
			}
			reasons = append(reasons, fmt.Sprintf("lane %q declared %d but no events observed", lane, want.Total))
			continue
		}
		if got.Total != want.Total {
			reasons = append(reasons, fmt.Sprintf("lane %q declared %d but counted %d", lane, want.Total, got.Total))
		}
	}
	for lane, got := range counted {
		if _, ok := declared[lane]; !ok {
			reasons = append(reasons, fmt.Sprintf("lane %q counted %d but absent from declared lanes", lane, got.Total))
		}
	}
	sort.Strings(reasons)
	return reasons
}

func sortedLaneNames(lanes map[string]DeclaredLane) []string {
	names := make([]string, 0, len(lanes))
	for name := range lanes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
