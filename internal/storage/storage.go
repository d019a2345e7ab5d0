package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"

	"google.golang.org/api/googleapi"
)

// Uploader moves finished artifacts into durable storage. Uploads to the
// same object key are idempotent: re-running an upload overwrites the object
// in place and yields the same reference.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
	Delete(ctx context.Context, objectKey string) error
	Close() error
}

// UploadRequest describes one artifact upload.
type UploadRequest struct {
	JobID       string
	SourcePath  string
	ContentType string
}

// UploadResult is the durable reference for a stored artifact.
type UploadResult struct {
	ObjectKey string
	URL       string
	SizeBytes int64
}

// TransientUploadError marks an upload failure worth retrying: the storage
// backend was reachable but momentarily unable to serve, or the transport
// dropped mid-stream.
type TransientUploadError struct {
	Op  string
	Err error
}

func (e *TransientUploadError) Error() string {
	return fmt.Sprintf("transient upload failure during %s: %v", e.Op, e.Err)
}

func (e *TransientUploadError) Unwrap() error { return e.Err }

// FatalUploadError marks an upload failure that retrying cannot fix, such as
// a missing bucket or rejected credentials.
type FatalUploadError struct {
	Op  string
	Err error
}

func (e *FatalUploadError) Error() string {
	return fmt.Sprintf("upload failed during %s: %v", e.Op, e.Err)
}

func (e *FatalUploadError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable upload failure.
func IsTransient(err error) bool {
	var transient *TransientUploadError
	return errors.As(err, &transient)
}

// classifyError wraps a storage backend error as transient or fatal.
// Rate limiting, request timeouts, server errors, and network drops are
// transient; everything else, notably auth and missing-bucket errors, is
// fatal.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusRequestTimeout,
			apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code >= http.StatusInternalServerError:
			return &TransientUploadError{Op: op, Err: err}
		default:
			return &FatalUploadError{Op: op, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientUploadError{Op: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientUploadError{Op: op, Err: err}
	}

	return &FatalUploadError{Op: op, Err: err}
}

// ObjectKey derives the storage object key for a job's artifact. Keys are
// stable per job so repeated uploads land on the same object.
func ObjectKey(folder, jobID string) string {
	return path.Join(folder, jobID+".mp4")
}
