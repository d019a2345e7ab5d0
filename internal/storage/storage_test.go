package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestClassifyErrorTransientCodes(t *testing.T) {
	for _, code := range []int{
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
	} {
		err := classifyError("copy", &googleapi.Error{Code: code})
		if !IsTransient(err) {
			t.Fatalf("code %d: expected transient classification, got %v", code, err)
		}
	}
}

func TestClassifyErrorFatalCodes(t *testing.T) {
	for _, code := range []int{
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusPreconditionFailed,
	} {
		err := classifyError("copy", &googleapi.Error{Code: code})
		if IsTransient(err) {
			t.Fatalf("code %d: expected fatal classification", code)
		}
		var fatal *FatalUploadError
		if !errors.As(err, &fatal) {
			t.Fatalf("code %d: expected FatalUploadError, got %T", code, err)
		}
	}
}

func TestClassifyErrorDeadlineIsTransient(t *testing.T) {
	if err := classifyError("copy", context.DeadlineExceeded); !IsTransient(err) {
		t.Fatalf("expected deadline to classify as transient, got %v", err)
	}
}

func TestClassifyErrorNil(t *testing.T) {
	if err := classifyError("copy", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestObjectKeyStablePerJob(t *testing.T) {
	key := ObjectKey("traffic/artifacts", "job-123")
	if key != "traffic/artifacts/job-123.mp4" {
		t.Fatalf("unexpected key %q", key)
	}
	if key != ObjectKey("traffic/artifacts", "job-123") {
		t.Fatal("expected stable key for the same job")
	}
	if ObjectKey("", "job-123") != "job-123.mp4" {
		t.Fatalf("unexpected key without folder: %q", ObjectKey("", "job-123"))
	}
}

func TestUploadErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	transient := &TransientUploadError{Op: "copy", Err: inner}
	if !errors.Is(transient, inner) {
		t.Fatal("transient error should unwrap to its cause")
	}
	fatal := &FatalUploadError{Op: "close", Err: inner}
	if !errors.Is(fatal, inner) {
		t.Fatal("fatal error should unwrap to its cause")
	}
}
