// Package counting turns detector crossing events into per-lane vehicle
// counts. The aggregator deduplicates vehicle identities so each physical
// vehicle is counted at most once, attributes cross-lane reappearances to the
// first-seen lane, and validates finalized results against the detector's own
// declared totals before they are allowed near a job record.
package counting
