// Package deps reports availability of external binaries the pipeline
// shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement describes one external binary dependency.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports availability of a dependency, with the resolved path when
// the binary was found.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// Check resolves a single requirement against PATH.
func Check(req Requirement) Status {
	command := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     command,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", command)
		return status
	}
	status.Available = true
	status.Path = resolved
	return status
}

// CheckAll evaluates the provided requirements in order.
func CheckAll(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Check(req))
	}
	return results
}
