// Package detector is the file-based boundary to the external vehicle
// detection worker: dispatch requests go out as JSON, counting reports and
// processed artifacts come back through the results directory.
package detector
