// Package main hosts the lanecount CLI entrypoint and command graph.
//
// The Cobra-based command tree covers job registration and inspection, queue
// statistics, database health checks, reconciliation of interrupted jobs,
// audit trail queries, and configuration scaffolding. Commands open the job
// store directly; SQLite in WAL mode keeps that safe alongside a running
// daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
