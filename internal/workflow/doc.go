// Package workflow advances traffic video jobs through the counting
// pipeline.
//
// The Manager runs three independent lanes: dispatch hands uploaded jobs to
// the external detection worker, ingest collects finished counting reports
// and artifacts and completes jobs (failing those whose worker went silent),
// and the sweep lane periodically reconciles stuck jobs and prunes records
// past their retention window. Each lane polls the queue independently so a
// slow ingest never blocks new dispatches.
package workflow
