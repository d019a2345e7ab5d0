package counting

import "strings"

// MalformedResultError reports a results payload that failed structural
// validation: negative counts, per-lane sums that disagree with class counts,
// or declared totals inconsistent with the deduplicated identity count.
type MalformedResultError struct {
	Reasons []string
}

func (e *MalformedResultError) Error() string {
	if len(e.Reasons) == 0 {
		return "malformed counting result"
	}
	return "malformed counting result: " + strings.Join(e.Reasons, "; ")
}
