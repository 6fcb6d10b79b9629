package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"stockmerge/internal/faults"
	"stockmerge/internal/render"
	"stockmerge/internal/timeline"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Validate runs every static check against the job. It does not probe media;
// that happens in the merge preflight.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateInputs()...)
	results = append(results, c.validateTransitions()...)
	results = append(results, c.validateOverlays()...)
	results = append(results, c.validateRuntime()...)
	return results
}

// Err folds error-level results into a ConfigurationError. Warnings are
// ignored. It returns nil when nothing failed.
func Err(results []ValidationResult) error {
	cerr := &faults.ConfigurationError{}
	for _, r := range results {
		if r.Level == "error" {
			cerr.Add(r.Field, "%s", r.Message)
		}
	}
	return cerr.OrNil()
}

func (c Config) validateInputs() []ValidationResult {
	var results []ValidationResult
	if strings.TrimSpace(c.MainVideo) == "" {
		results = append(results, errorf("main_video", "main_video is required"))
	} else if _, err := os.Stat(c.MainVideo); err != nil {
		results = append(results, errorf("main_video", "main video %q not found", c.MainVideo))
	}

	for i, stock := range c.StockVideos {
		if strings.TrimSpace(stock) == "" {
			results = append(results, errorf(fmt.Sprintf("stock_videos[%d]", i), "stock video path is empty"))
			continue
		}
		if _, err := os.Stat(stock); err != nil {
			results = append(results, errorf(fmt.Sprintf("stock_videos[%d]", i), "stock video %q not found", stock))
		}
	}

	if strings.TrimSpace(c.Output) == "" {
		results = append(results, errorf("output", "output is required"))
	} else if c.Output == c.MainVideo {
		results = append(results, errorf("output", "output must differ from main_video"))
	}
	return results
}

func (c Config) validateTransitions() []ValidationResult {
	var results []ValidationResult
	t := c.Transitions
	switch t.Backend {
	case BackendScript:
		if strings.TrimSpace(t.Script) == "" {
			results = append(results, errorf("transitions.script", "script backend requires transitions.script"))
		} else if _, err := os.Stat(t.Script); err != nil {
			results = append(results, errorf("transitions.script", "transition script %q not found", t.Script))
		}
	case BackendXfade:
	default:
		results = append(results, errorf("transitions.backend", "unknown backend %q (want %s or %s)", t.Backend, BackendScript, BackendXfade))
	}

	if len(t.Effects) == 0 {
		results = append(results, errorf("transitions.effects", "at least one effect is required"))
	}
	seen := make(map[string]bool, len(t.Effects))
	for _, e := range t.Effects {
		e = strings.TrimSpace(e)
		if e == "" {
			results = append(results, errorf("transitions.effects", "effect names must not be empty"))
			continue
		}
		if seen[e] {
			results = append(results, warnf("transitions.effects", "effect %q listed more than once", e))
		}
		seen[e] = true
	}
	if t.NumFrames < 2 {
		results = append(results, errorf("transitions.num_frames", "num_frames must be >= 2"))
	}
	if t.MaxBrightness <= 0 {
		results = append(results, errorf("transitions.max_brightness", "max_brightness must be > 0"))
	}
	if t.TimeoutSec < 0 {
		results = append(results, errorf("transitions.timeout_s", "timeout_s must be >= 0"))
	}
	return results
}

func (c Config) validateOverlays() []ValidationResult {
	var results []ValidationResult
	if _, err := render.ParseStockPolicy(c.Stock.ShortPolicy); err != nil {
		results = append(results, errorf("stock.short_policy", "%v", err))
	}

	if len(c.Overlays) == 0 {
		results = append(results, warnf("overlays", "no overlays defined; output will be a re-encode of the main video"))
		return results
	}

	timing := timeline.Timing{PreRoll: c.Timing.PreRollSec, Bridge: c.Timing.BridgeSec}
	if _, err := timeline.Plan(c.Overlays, len(c.StockVideos), timing); err != nil {
		var cerr *faults.ConfigurationError
		if errors.As(err, &cerr) {
			for _, issue := range cerr.Issues {
				results = append(results, errorf(issue.Field, "%s", issue.Message))
			}
		} else {
			results = append(results, errorf("overlays", "%v", err))
		}
	}

	used := make(map[int]bool, len(c.Overlays))
	for _, o := range c.Overlays {
		used[o.StockIndex] = true
	}
	var unused []int
	for i := range c.StockVideos {
		if !used[i] {
			unused = append(unused, i)
		}
	}
	sort.Ints(unused)
	for _, i := range unused {
		results = append(results, warnf(fmt.Sprintf("stock_videos[%d]", i), "stock video %d is not referenced by any overlay", i))
	}
	return results
}

func (c Config) validateRuntime() []ValidationResult {
	var results []ValidationResult
	if c.Concurrency < 1 {
		results = append(results, errorf("concurrency", "concurrency must be >= 1"))
	}
	if c.GraceSec != nil && *c.GraceSec < 0 {
		results = append(results, errorf("grace_period_s", "grace_period_s must be >= 0"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		results = append(results, warnf("log_level", "unknown log level %q, using info", c.LogLevel))
	}
	return results
}

func errorf(field, format string, args ...any) ValidationResult {
	return ValidationResult{Level: "error", Field: field, Message: fmt.Sprintf(format, args...)}
}

func warnf(field, format string, args ...any) ValidationResult {
	return ValidationResult{Level: "warning", Field: field, Message: fmt.Sprintf(format, args...)}
}
