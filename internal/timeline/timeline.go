// Package timeline validates overlay requests and derives the transition
// windows around each one.
package timeline

import (
	"fmt"
	"math"
	"sort"

	"stockmerge/internal/faults"
)

// Default window offsets in seconds.
const (
	DefaultPreRoll = 0.5
	DefaultBridge  = 0.26
)

// Request asks for stock video StockIndex to replace the primary video between
// Start and End (seconds).
type Request struct {
	Start      float64 `yaml:"start" toml:"start" json:"start"`
	End        float64 `yaml:"end" toml:"end" json:"end"`
	StockIndex int     `yaml:"stock" toml:"stock" json:"stock"`
}

// Duration returns the length of the replaced interval.
func (r Request) Duration() float64 {
	return r.End - r.Start
}

func (r Request) String() string {
	return fmt.Sprintf("[%s, %s] stock %d", formatSeconds(r.Start), formatSeconds(r.End), r.StockIndex)
}

// Timing controls the pre-roll and bridge lengths around each request.
type Timing struct {
	PreRoll float64
	Bridge  float64
}

// DefaultTiming returns the standard 0.5s pre-roll and 0.26s bridge.
func DefaultTiming() Timing {
	return Timing{PreRoll: DefaultPreRoll, Bridge: DefaultBridge}
}

// Window is a planned request with its derived boundaries.
//
//	TransitionInStart   = Start - PreRoll   (track anchor)
//	MainSegmentInEnd    = Start - Bridge    (end of the entry bridge)
//	MainSegmentOutStart = End               (start of the exit bridge)
//	MainSegmentOutEnd   = End + Bridge
type Window struct {
	Request
	Seq                 int
	TransitionInStart   float64
	MainSegmentInEnd    float64
	MainSegmentOutStart float64
	MainSegmentOutEnd   float64
}

// Derive computes the window for a single request.
func Derive(req Request, timing Timing) Window {
	return Window{
		Request:             req,
		TransitionInStart:   req.Start - timing.PreRoll,
		MainSegmentInEnd:    req.Start - timing.Bridge,
		MainSegmentOutStart: req.End,
		MainSegmentOutEnd:   req.End + timing.Bridge,
	}
}

// Plan validates requests against stockCount, sorts them by start time, and
// derives their windows. All problems are reported together in a
// *faults.ConfigurationError.
func Plan(requests []Request, stockCount int, timing Timing) ([]Window, error) {
	var cerr faults.ConfigurationError

	// Comparisons are written so that NaN fails them.
	if !(finite(timing.PreRoll) && timing.PreRoll > 0) {
		cerr.Add("timing.pre_roll", "must be positive, got %v", timing.PreRoll)
	}
	if !(finite(timing.Bridge) && timing.Bridge > 0 && timing.Bridge < timing.PreRoll) {
		cerr.Add("timing.bridge", "must be positive and shorter than pre_roll (%v), got %v", timing.PreRoll, timing.Bridge)
	}

	for i, req := range requests {
		field := fmt.Sprintf("overlays[%d]", i)
		if !finite(req.Start) || !finite(req.End) {
			cerr.Add(field, "start %v and end %v must be finite numbers", req.Start, req.End)
		} else {
			if !(req.Start >= 0) {
				cerr.Add(field, "start %s is negative", formatSeconds(req.Start))
			} else if !(req.Start >= timing.PreRoll) {
				cerr.Add(field, "start %s leaves no room for the %s pre-roll", formatSeconds(req.Start), formatSeconds(timing.PreRoll))
			}
			if !(req.Start < req.End) {
				cerr.Add(field, "start %s must be before end %s", formatSeconds(req.Start), formatSeconds(req.End))
			}
		}
		if req.StockIndex < 0 || req.StockIndex >= stockCount {
			cerr.Add(field, "stock index %d out of range (have %d stock videos)", req.StockIndex, stockCount)
		}
	}
	if err := cerr.OrNil(); err != nil {
		return nil, err
	}

	sorted := make([]Request, len(requests))
	copy(sorted, requests)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	windows := make([]Window, len(sorted))
	for i, req := range sorted {
		windows[i] = Derive(req, timing)
		windows[i].Seq = i + 1
	}

	for i := 1; i < len(windows); i++ {
		prev, cur := windows[i-1], windows[i]
		if cur.Start <= prev.End {
			cerr.Add("overlays", "%s overlaps %s", cur.Request, prev.Request)
			continue
		}
		if cur.TransitionInStart < prev.MainSegmentOutEnd {
			cerr.Add("overlays", "%s transition window starts at %s, before %s finishes its exit bridge at %s",
				cur.Request, formatSeconds(cur.TransitionInStart), prev.Request, formatSeconds(prev.MainSegmentOutEnd))
		}
	}
	if err := cerr.OrNil(); err != nil {
		return nil, err
	}

	return windows, nil
}

// CheckBounds rejects windows whose exit bridge runs past the end of the
// primary video.
func CheckBounds(windows []Window, primaryDuration float64) error {
	var cerr faults.ConfigurationError
	for _, w := range windows {
		if !(w.MainSegmentOutEnd <= primaryDuration) {
			cerr.Add("overlays", "%s exit bridge ends at %s, after the primary video (%s)",
				w.Request, formatSeconds(w.MainSegmentOutEnd), formatSeconds(primaryDuration))
		}
	}
	return cerr.OrNil()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Span returns the [first anchor, last exit] range covered by windows.
func Span(windows []Window) (float64, float64) {
	if len(windows) == 0 {
		return 0, 0
	}
	return windows[0].TransitionInStart, windows[len(windows)-1].MainSegmentOutEnd
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%gs", v)
}
