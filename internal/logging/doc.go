// Package logging builds the slog loggers used across lanecount and the small
// attribute vocabulary components share (job_id, component, event_type).
// Console and JSON formats are supported; NewFromConfig additionally tees
// output into lanecount.log under the configured log directory.
package logging
