// Package reconcile repairs jobs whose recorded lifecycle state diverged
// from the evidence on disk, walking them toward completed whenever the
// artifact and counting report can be recovered.
package reconcile
