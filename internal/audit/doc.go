// Package audit keeps the append-only history of what happened to each
// traffic video job and aggregates it for operator reports.
package audit
