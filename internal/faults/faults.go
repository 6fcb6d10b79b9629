// Package faults defines the error taxonomy shared by the merge pipeline.
//
// Fatal errors (ConfigurationError, MediaOpenError, TransitionError) abort a
// run after the resource ledger has been released. CleanupWarning is never
// returned as a run error; it is logged and reported alongside the result.
package faults

import (
	"fmt"
	"strings"
)

// Issue is a single configuration problem.
type Issue struct {
	Field   string
	Message string
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// ConfigurationError reports invalid overlay requests or job settings. It is
// raised before any media work begins.
type ConfigurationError struct {
	Issues []Issue
}

func (e *ConfigurationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "invalid configuration"
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Add appends an issue.
func (e *ConfigurationError) Add(field, format string, args ...any) {
	e.Issues = append(e.Issues, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns e when it holds at least one issue.
func (e *ConfigurationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// MediaOpenError reports a primary or stock video that could not be read.
type MediaOpenError struct {
	Role string // "primary", "stock[1]", "phase", ...
	Path string
	Err  error
}

func (e *MediaOpenError) Error() string {
	return fmt.Sprintf("open %s media %s: %v", e.Role, e.Path, e.Err)
}

func (e *MediaOpenError) Unwrap() error { return e.Err }

// TransitionError reports a failed or incomplete transition generation.
type TransitionError struct {
	Effect string
	From   string
	To     string
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %q (%s -> %s): %v", e.Effect, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// CleanupWarning reports a handle that failed to close or a path that could not
// be removed.
type CleanupWarning struct {
	Path string
	Err  error
}

func (w CleanupWarning) Error() string {
	return fmt.Sprintf("cleanup %s: %v", w.Path, w.Err)
}

func (w CleanupWarning) Unwrap() error { return w.Err }

// SegmentError attaches the identity of the failing overlay segment.
type SegmentError struct {
	Start      float64
	End        float64
	StockIndex int
	Err        error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment [%s, %s] stock %d: %v", formatSeconds(e.Start), formatSeconds(e.End), e.StockIndex, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

func formatSeconds(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".") + "s"
}
