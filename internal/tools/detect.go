// Package tools locates the external executables stockmerge shells out to.
package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"stockmerge/internal/media"
)

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// Detect resolves and versions every definition. Missing tools are reported in
// their Status rather than as an error.
func Detect(ctx context.Context, runner media.Runner, defs []ToolDefinition) []Status {
	if runner == nil {
		runner = media.CmdRunner{}
	}
	statuses := make([]Status, 0, len(defs))
	for _, def := range defs {
		statuses = append(statuses, detectOne(ctx, runner, def))
	}
	return statuses
}

func detectOne(ctx context.Context, runner media.Runner, def ToolDefinition) Status {
	status := Status{Tool: def.Name, Minimum: def.MinimumVersion}

	path, err := lookPath(def.Executable)
	if err != nil {
		status.Error = fmt.Sprintf("%s not found in PATH", def.Executable)
		status.Notes = installHints(def.Name)
		return status
	}
	status.Path = path

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	version, err := readVersion(ctx, runner, def, path)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	status.Version = version
	status.Satisfied = meetsMinimum(version, def.MinimumVersion)
	if !status.Satisfied {
		status.Error = fmt.Sprintf("version %s below minimum %s", version, def.MinimumVersion)
	}
	return status
}

// Require returns an error naming every required tool that is not satisfied.
// need limits the check to the named tools; optional tools are only checked
// when named explicitly.
func Require(statuses []Status, defs []ToolDefinition, need ...string) error {
	optional := make(map[string]bool, len(defs))
	for _, d := range defs {
		optional[d.Name] = d.Optional
	}
	wanted := make(map[string]bool, len(need))
	for _, n := range need {
		wanted[n] = true
	}

	var problems []string
	for _, s := range statuses {
		if len(wanted) > 0 && !wanted[s.Tool] {
			continue
		}
		if len(wanted) == 0 && optional[s.Tool] {
			continue
		}
		if !s.Satisfied {
			problems = append(problems, fmt.Sprintf("%s: %s", s.Tool, s.Error))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("missing tools: %s", strings.Join(problems, "; "))
	}
	return nil
}
