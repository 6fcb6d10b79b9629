package render

import (
	"stockmerge/internal/geometry"
	"stockmerge/internal/media"
	"stockmerge/internal/timeline"
)

// Clip roles within a track, in playback order.
const (
	RoleTransitionIn1  = "transition_in_1"
	RoleTransitionIn2  = "transition_in_2"
	RoleStock          = "stock"
	RoleTransitionOut1 = "transition_out_1"
	RoleTransitionOut2 = "transition_out_2"
)

// FittedClip is one input of a track together with its placement on the
// target frame.
type FittedClip struct {
	Role string
	Path string
	Info media.Info
	Fit  geometry.FitTransform
}

// Track is the rendered overlay for one window: the two entry phases, the
// stock body, and the two exit phases, anchored at the window's
// TransitionInStart.
type Track struct {
	Window   timeline.Window
	Effects  [2]string
	Path     string
	Start    float64
	Duration float64
	Clips    []FittedClip
}

// End returns the time on the primary timeline at which the track stops.
func (t Track) End() float64 {
	return t.Start + t.Duration
}

// Plan is the complete description of the final render.
type Plan struct {
	Primary media.Info
	Tracks  []Track
}

// Segment is the unit of work handed to a ProgressReporter.
type Segment struct {
	Window  timeline.Window
	Stock   media.Info
	Effects [2]string
}

// SegmentResult captures the outcome of building one track.
type SegmentResult struct {
	Segment Segment
	Track   Track
	LogPath string
	Err     error
}

// ProgressReporter receives notifications as segments move through the
// pipeline.
type ProgressReporter interface {
	Start(segment Segment)
	Complete(result SegmentResult)
}

type nopReporter struct{}

func (nopReporter) Start(Segment)          {}
func (nopReporter) Complete(SegmentResult) {}
