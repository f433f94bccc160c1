// Package deps verifies external tooling and resolves the worker executable
// that the pool launches.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool names one external command the bridge environment wants on PATH.
// Optional tools degrade features instead of blocking startup.
type Tool struct {
	Name     string
	Command  string
	Optional bool
}

// Status is the probe result for one tool. Path holds the resolved location
// when the tool was found.
type Status struct {
	Tool
	Available bool
	Path      string
	Detail    string
}

// CheckTools probes each tool on PATH and reports what was found.
func CheckTools(tools []Tool) []Status {
	statuses := make([]Status, 0, len(tools))
	for _, tool := range tools {
		tool.Command = strings.TrimSpace(tool.Command)
		status := Status{Tool: tool}
		if tool.Command == "" {
			status.Detail = "command not configured"
			statuses = append(statuses, status)
			continue
		}
		path, err := exec.LookPath(tool.Command)
		if err != nil {
			status.Detail = fmt.Sprintf("%q not found on PATH", tool.Command)
			statuses = append(statuses, status)
			continue
		}
		status.Available = true
		status.Path = path
		statuses = append(statuses, status)
	}
	return statuses
}
