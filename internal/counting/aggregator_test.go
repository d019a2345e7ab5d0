package counting_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"lanecount/internal/counting"
)

func TestObserveCountsEachIdentityOnce(t *testing.T) {
	agg := counting.NewAggregator()

	events := []counting.CrossingEvent{
		{Identity: "t-1", Lane: "left", Class: "car", Frame: 10},
		{Identity: "t-2", Lane: "left", Class: "bus", Frame: 12},
		{Identity: "t-1", Lane: "left", Class: "car", Frame: 13},
		{Identity: "t-3", Lane: "right", Class: "car", Frame: 20},
	}
	counted := 0
	for _, event := range events {
		if agg.Observe(event) {
			counted++
		}
	}
	if counted != 3 {
		t.Fatalf("expected 3 counted events, got %d", counted)
	}

	result, err := agg.Finalize(counting.Metadata{FrameCount: 100, MaxDetectionsPerFrame: 8})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if result.TotalCounted != 3 {
		t.Fatalf("expected total 3, got %d", result.TotalCounted)
	}
	if result.Lanes["left"].Total != 2 || result.Lanes["right"].Total != 1 {
		t.Fatalf("unexpected lane totals: %#v", result.Lanes)
	}
	if result.Lanes["left"].Classes["car"] != 1 || result.Lanes["left"].Classes["bus"] != 1 {
		t.Fatalf("unexpected left lane classes: %#v", result.Lanes["left"].Classes)
	}
}

func TestCrossLaneReassignmentKeepsFirstLane(t *testing.T) {
	agg := counting.NewAggregator()

	if !agg.Observe(counting.CrossingEvent{Identity: "t-7", Lane: "left", Class: "truck", Frame: 5}) {
		t.Fatal("first observation should count")
	}
	if agg.Observe(counting.CrossingEvent{Identity: "t-7", Lane: "right", Class: "truck", Frame: 9}) {
		t.Fatal("reassigned observation should not count")
	}
	if agg.CrossLaneReassignments() != 1 {
		t.Fatalf("expected 1 reassignment, got %d", agg.CrossLaneReassignments())
	}

	result, err := agg.Finalize(counting.Metadata{})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if result.Lanes["left"].Total != 1 {
		t.Fatalf("expected identity attributed to left lane, got %#v", result.Lanes)
	}
	if _, ok := result.Lanes["right"]; ok {
		t.Fatalf("right lane should hold no counts, got %#v", result.Lanes["right"])
	}
}

// Property: for any event stream with randomly duplicated identities, the
// total equals the sum of lane class counts and the distinct identity count.
func TestTotalMatchesLaneSumsUnderRandomDuplication(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	lanes := []string{"left", "right", "center"}
	classes := []string{"car", "bus", "truck"}

	for trial := 0; trial < 50; trial++ {
		agg := counting.NewAggregator()
		distinct := rng.Intn(40) + 1
		identities := make([]string, distinct)
		for i := range identities {
			identities[i] = fmt.Sprintf("t-%d-%d", trial, i)
		}

		emitted := 0
		for _, identity := range identities {
			repeats := rng.Intn(4) + 1
			for r := 0; r < repeats; r++ {
				agg.Observe(counting.CrossingEvent{
					Identity: identity,
					Lane:     lanes[rng.Intn(len(lanes))],
					Class:    classes[rng.Intn(len(classes))],
					Frame:    emitted,
				})
				emitted++
			}
		}

		result, err := agg.Finalize(counting.Metadata{FrameCount: emitted + 1, MaxDetectionsPerFrame: 8})
		if err != nil {
			t.Fatalf("trial %d: Finalize failed: %v", trial, err)
		}
		if result.TotalCounted != distinct {
			t.Fatalf("trial %d: expected total %d, got %d", trial, distinct, result.TotalCounted)
		}

		laneSum := 0
		for lane, counts := range result.Lanes {
			classSum := 0
			for _, n := range counts.Classes {
				classSum += n
			}
			if classSum != counts.Total {
				t.Fatalf("trial %d: lane %q total %d != class sum %d", trial, lane, counts.Total, classSum)
			}
			laneSum += counts.Total
		}
		if laneSum != result.TotalCounted {
			t.Fatalf("trial %d: lane sum %d != total %d", trial, laneSum, result.TotalCounted)
		}
		if len(result.CountedIdentities) != distinct {
			t.Fatalf("trial %d: expected %d identities, got %d", trial, distinct, len(result.CountedIdentities))
		}
	}
}

func TestFinalizeReportsBoundViolation(t *testing.T) {
	agg := counting.NewAggregator()
	for i := 0; i < 10; i++ {
		agg.Observe(counting.CrossingEvent{Identity: fmt.Sprintf("t-%d", i), Lane: "left", Class: "car", Frame: 1})
	}

	_, err := agg.Finalize(counting.Metadata{FrameCount: 2, MaxDetectionsPerFrame: 3})
	if err == nil {
		t.Fatal("expected bound violation error")
	}
	var malformed *counting.MalformedResultError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResultError, got %T: %v", err, err)
	}
}

func TestResultEqual(t *testing.T) {
	build := func() *counting.Result {
		agg := counting.NewAggregator()
		agg.Observe(counting.CrossingEvent{Identity: "a", Lane: "left", Class: "car", Frame: 1})
		agg.Observe(counting.CrossingEvent{Identity: "b", Lane: "right", Class: "bus", Frame: 2})
		result, err := agg.Finalize(counting.Metadata{LinePositionPixels: 540, FrameCount: 100, AccuracyEstimate: 0.9})
		if err != nil {
			t.Fatalf("Finalize failed: %v", err)
		}
		return result
	}

	first, second := build(), build()
	if !first.Equal(second) {
		t.Fatalf("identical ingestions should be equal: %#v vs %#v", first, second)
	}

	second.Lanes["left"] = counting.LaneCount{Total: 2, Classes: map[string]int{"car": 2}}
	if first.Equal(second) {
		t.Fatal("differing lane counts should not be equal")
	}
}
