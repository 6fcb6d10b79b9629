package render

import (
	"fmt"
	"strings"

	"stockmerge/internal/geometry"
	"stockmerge/internal/media"
)

// ClipFilter normalizes one clip to exactly target size at fps with a zeroed
// timeline, ready for concatenation.
func ClipFilter(fit geometry.FitTransform, target geometry.Size, fps int) string {
	return strings.Join([]string{
		fit.Filter(target),
		fmt.Sprintf("fps=%d", fps),
		"format=yuv420p",
		"setpts=PTS-STARTPTS",
	}, ",")
}

// BuildTrackGraph concatenates clips, in order, into a single [v] stream.
func BuildTrackGraph(clips []FittedClip, target geometry.Size, fps int) string {
	parts := make([]string, 0, len(clips)+1)
	var labels strings.Builder
	for i, clip := range clips {
		parts = append(parts, fmt.Sprintf("[%d:v]%s[c%d]", i, ClipFilter(clip.Fit, target, fps), i))
		fmt.Fprintf(&labels, "[c%d]", i)
	}
	parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[v]", labels.String(), len(clips)))
	return strings.Join(parts, ";")
}

// BuildCompositeGraph overlays each track, input i+1, onto the primary at
// input 0. Tracks are shifted to their start time and only drawn while they
// play; the primary shows through once a track ends. The result is [vout].
func BuildCompositeGraph(tracks []Track) string {
	if len(tracks) == 0 {
		return "[0:v]null[vout]"
	}

	parts := make([]string, 0, 2*len(tracks))
	base := "[0:v]"
	for i, track := range tracks {
		input := i + 1
		start := media.FormatSeconds(track.Start)
		parts = append(parts, fmt.Sprintf("[%d:v]setpts=PTS-STARTPTS+%s/TB[t%d]", input, start, input))

		out := fmt.Sprintf("[o%d]", input)
		if i == len(tracks)-1 {
			out = "[vout]"
		}
		enable := fmt.Sprintf("between(t,%s,%s)", start, media.FormatSeconds(track.End()))
		parts = append(parts, fmt.Sprintf("%s[t%d]overlay=x=0:y=0:enable='%s':eof_action=pass%s", base, input, enable, out))
		base = out
	}
	return strings.Join(parts, ";")
}
