package transition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"stockmerge/internal/media"
)

// xfadeNames maps effect names onto ffmpeg xfade transitions. Names not listed
// are passed through, so any xfade transition can be configured directly.
var xfadeNames = map[string]string{
	EffectZoomIn:      "zoomin",
	EffectTranslation: "slideleft",
}

// XfadeName returns the ffmpeg xfade transition for effect.
func XfadeName(effect string) string {
	if name, ok := xfadeNames[effect]; ok {
		return name
	}
	return effect
}

// Xfade renders transitions in-process with ffmpeg's xfade filter. The blend
// spans min(durA, durB, 2*NumFrames/FPS) seconds and is split at its midpoint
// into the two phases.
type Xfade struct {
	FFmpeg    *media.FFmpeg
	Prober    *media.Prober
	NumFrames int
	FPS       int
	Encoding  media.Encoding
}

// NewXfade returns an xfade backend with default parameters.
func NewXfade(ffmpeg *media.FFmpeg, prober *media.Prober, enc media.Encoding) *Xfade {
	return &Xfade{
		FFmpeg:    ffmpeg,
		Prober:    prober,
		NumFrames: DefaultNumFrames,
		FPS:       30,
		Encoding:  enc,
	}
}

// BlendDuration returns the length of the full two-phase blend.
func (x *Xfade) BlendDuration(durA, durB float64) float64 {
	fps := x.FPS
	if fps <= 0 {
		fps = 30
	}
	frames := x.NumFrames
	if frames <= 0 {
		frames = DefaultNumFrames
	}
	return min(durA, durB, 2*float64(frames)/float64(fps))
}

func (x *Xfade) Generate(ctx context.Context, clipA, clipB, effect, prefix string) (Phases, error) {
	a, err := x.Prober.Probe(ctx, clipA, nil)
	if err != nil {
		return Phases{}, transitionError(effect, clipA, clipB, fmt.Errorf("probe %s: %w", clipA, err))
	}
	b, err := x.Prober.Probe(ctx, clipB, nil)
	if err != nil {
		return Phases{}, transitionError(effect, clipA, clipB, fmt.Errorf("probe %s: %w", clipB, err))
	}

	d := x.BlendDuration(a.Duration, b.Duration)
	if d <= 0 {
		return Phases{}, transitionError(effect, clipA, clipB, errors.New("clips too short to blend"))
	}

	logFile, err := os.OpenFile(prefix+".log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Phases{}, transitionError(effect, clipA, clipB, fmt.Errorf("open transition log: %w", err))
	}
	defer logFile.Close()

	phases := PhasePaths(prefix, "mp4")
	args := x.Args(clipA, clipB, a, effect, d, phases)
	if err := x.FFmpeg.Run(ctx, "xfade", args, logFile); err != nil {
		return Phases{}, transitionError(effect, clipA, clipB, err)
	}
	if err := phases.verify(); err != nil {
		return Phases{}, transitionError(effect, clipA, clipB, err)
	}
	return phases, nil
}

// Args builds the ffmpeg invocation. Both inputs are normalized to clip A's
// frame size so xfade accepts them.
func (x *Xfade) Args(clipA, clipB string, a media.Info, effect string, d float64, phases Phases) []string {
	fps := x.FPS
	if fps <= 0 {
		fps = 30
	}
	norm := fmt.Sprintf("scale=w=%d:h=%d,setsar=1,fps=%d,format=yuv420p,settb=AVTB", a.Size.Width, a.Size.Height, fps)
	offset := max(a.Duration-d, 0)
	half := d / 2

	graph := strings.Join([]string{
		"[0:v]" + norm + "[a]",
		"[1:v]" + norm + "[b]",
		fmt.Sprintf("[a][b]xfade=transition=%s:duration=%s:offset=%s,split[x1][x2]",
			XfadeName(effect), media.FormatSeconds(d), media.FormatSeconds(offset)),
		fmt.Sprintf("[x1]trim=start=%s:end=%s,setpts=PTS-STARTPTS[p1]",
			media.FormatSeconds(offset), media.FormatSeconds(offset+half)),
		fmt.Sprintf("[x2]trim=start=%s:end=%s,setpts=PTS-STARTPTS[p2]",
			media.FormatSeconds(offset+half), media.FormatSeconds(offset+d)),
	}, ";")

	args := []string{
		"-i", clipA,
		"-i", clipB,
		"-filter_complex", graph,
		"-map", "[p1]", "-an",
	}
	args = append(args, x.Encoding.VideoArgs()...)
	args = append(args, phases.Phase1, "-map", "[p2]", "-an")
	args = append(args, x.Encoding.VideoArgs()...)
	args = append(args, phases.Phase2)
	return args
}

var _ Generator = (*Xfade)(nil)
