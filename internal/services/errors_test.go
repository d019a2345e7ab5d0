package services_test

import (
	"errors"
	"testing"

	"lanecount/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	inner := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "ingest", "load payload", "read failed", inner)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to survive wrapping: %v", err)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("expected inner error to survive wrapping: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "upload", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker for nil marker: %v", err)
	}
}

func TestWrapBuildsDetail(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "counting", "finalize", "negative count", nil)
	want := "validation error: counting: finalize: negative count"
	if err.Error() != want {
		t.Fatalf("unexpected message: got %q want %q", err.Error(), want)
	}
}
