package queue

import "errors"

var (
	// ErrNotFound reports an unknown job identifier.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition reports a transition that is not reachable from
	// the job's current state. Callers racing on the same job should re-read
	// the record and decide whether the work is already done.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrIncompleteEvidence reports a transition attempted without the
	// evidence its edge requires (artifact reference, counting result, or a
	// failure detail).
	ErrIncompleteEvidence = errors.New("incomplete transition evidence")
)
