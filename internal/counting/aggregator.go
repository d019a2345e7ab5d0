package counting

import (
	"fmt"
	"sort"
)

// CrossingEvent is one line-crossing observation emitted by the detector for a
// tracked object.
type CrossingEvent struct {
	Identity string `json:"identity"`
	Lane     string `json:"lane"`
	Class    string `json:"class"`
	Frame    int    `json:"frame"`
}

// LaneCount holds per-class counts for one lane. Total always equals the sum
// of the class counts.
type LaneCount struct {
	Total   int            `json:"total"`
	Classes map[string]int `json:"classes"`
}

// Result is the finalized counting artifact attached to a completed job.
// Once attached it is immutable; re-ingesting the same payload must reproduce
// an equal Result.
type Result struct {
	TotalCounted       int                  `json:"total_counted"`
	Lanes              map[string]LaneCount `json:"lanes"`
	LinePositionPixels int                  `json:"line_position_pixels"`
	CountedIdentities  []string             `json:"counted_identities"`
	FrameCount         int                  `json:"frame_count"`
	AccuracyEstimate   float64              `json:"accuracy_estimate"`
}

// Equal reports whether two results carry the same counts and identity set.
// Diagnostic metadata (frame count, accuracy) participates too: an identical
// input payload produces an identical Result in full.
func (r *Result) Equal(other *Result) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.TotalCounted != other.TotalCounted ||
		r.LinePositionPixels != other.LinePositionPixels ||
		r.FrameCount != other.FrameCount ||
		r.AccuracyEstimate != other.AccuracyEstimate {
		return false
	}
	if len(r.Lanes) != len(other.Lanes) {
		return false
	}
	for lane, counts := range r.Lanes {
		peer, ok := other.Lanes[lane]
		if !ok || counts.Total != peer.Total || len(counts.Classes) != len(peer.Classes) {
			return false
		}
		for class, n := range counts.Classes {
			if peer.Classes[class] != n {
				return false
			}
		}
	}
	if len(r.CountedIdentities) != len(other.CountedIdentities) {
		return false
	}
	for i, identity := range r.CountedIdentities {
		if other.CountedIdentities[i] != identity {
			return false
		}
	}
	return true
}

// Metadata carries the diagnostic values the detector reported alongside the
// event stream, plus the defensive bound from configuration.
type Metadata struct {
	LinePositionPixels    int
	FrameCount            int
	AccuracyEstimate      float64
	MaxDetectionsPerFrame int
}

type laneTally struct {
	total   int
	classes map[string]int
}

// Aggregator folds a stream of crossing events into per-lane counts while
// deduplicating vehicle identities. Each identity is counted exactly once, in
// the lane of its first observed event; later events for the same identity are
// accepted and ignored, so ingestion is idempotent by construction.
//
// An Aggregator is scoped to a single job's ingestion and is not safe for
// concurrent use.
type Aggregator struct {
	firstLane  map[string]string
	lanes      map[string]*laneTally
	order      []string
	total      int
	reassigned int
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		firstLane: make(map[string]string),
		lanes:     make(map[string]*laneTally),
	}
}

// Observe feeds one crossing event. It returns true when the event produced a
// count, false when the identity had already been counted.
func (a *Aggregator) Observe(event CrossingEvent) bool {
	if lane, seen := a.firstLane[event.Identity]; seen {
		if lane != event.Lane {
			a.reassigned++
		}
		return false
	}
	a.firstLane[event.Identity] = event.Lane

	tally, ok := a.lanes[event.Lane]
	if !ok {
		tally = &laneTally{classes: make(map[string]int)}
		a.lanes[event.Lane] = tally
	}
	tally.total++
	tally.classes[event.Class]++
	a.total++
	a.order = append(a.order, event.Identity)
	return true
}

// Total returns the number of distinct identities counted so far.
func (a *Aggregator) Total() int {
	return a.total
}

// CrossLaneReassignments reports how many already-counted identities later
// reappeared under a different lane. Those events never change counts; the
// number is surfaced for observability.
func (a *Aggregator) CrossLaneReassignments() int {
	return a.reassigned
}

// Finalize closes the event stream and produces the Result. The defensive
// bound total <= frameCount * maxDetectionsPerFrame is checked here; a
// violation is reported as a malformed result, never clamped.
func (a *Aggregator) Finalize(meta Metadata) (*Result, error) {
	if meta.FrameCount > 0 && meta.MaxDetectionsPerFrame > 0 {
		bound := meta.FrameCount * meta.MaxDetectionsPerFrame
		if a.total > bound {
			return nil, &MalformedResultError{Reasons: []string{
				fmt.Sprintf("total count %d exceeds bound %d (%d frames x %d detections)",
					a.total, bound, meta.FrameCount, meta.MaxDetectionsPerFrame),
			}}
		}
	}

	lanes := make(map[string]LaneCount, len(a.lanes))
	for lane, tally := range a.lanes {
		classes := make(map[string]int, len(tally.classes))
		for class, n := range tally.classes {
			classes[class] = n
		}
		lanes[lane] = LaneCount{Total: tally.total, Classes: classes}
	}

	identities := make([]string, len(a.order))
	copy(identities, a.order)
	sort.Strings(identities)

	return &Result{
		TotalCounted:       a.total,
		Lanes:              lanes,
		LinePositionPixels: meta.LinePositionPixels,
		CountedIdentities:  identities,
		FrameCount:         meta.FrameCount,
		AccuracyEstimate:   meta.AccuracyEstimate,
	}, nil
}
