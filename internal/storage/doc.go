// Package storage uploads counted video artifacts to durable object
// storage and classifies failures as transient or fatal so callers can
// decide whether to retry.
package storage
