// Package queue persists traffic video jobs and their audit trail in SQLite.
//
// A job's lifecycle is uploaded -> processing -> completed or failed, with
// repair edges from failed and uploaded directly to completed. Transitions
// run as compare-and-set updates so concurrent workers cannot double-apply
// an edge, and a counting result is only ever written together with the
// transition to completed.
package queue
