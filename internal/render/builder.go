package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"stockmerge/internal/faults"
	"stockmerge/internal/geometry"
	"stockmerge/internal/ledger"
	"stockmerge/internal/logx"
	"stockmerge/internal/media"
	"stockmerge/internal/timeline"
	"stockmerge/internal/transition"
)

// IntermediateFPS is the frame rate of bridges, stock bodies and tracks.
const IntermediateFPS = 30

// StockPolicy decides what happens when a stock clip is shorter than the
// interval it must fill.
type StockPolicy string

const (
	StockReject StockPolicy = "reject"
	StockFreeze StockPolicy = "freeze"
	StockLoop   StockPolicy = "loop"
)

// ParseStockPolicy validates a policy name; empty means reject.
func ParseStockPolicy(value string) (StockPolicy, error) {
	switch p := StockPolicy(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return StockReject, nil
	case StockReject, StockFreeze, StockLoop:
		return p, nil
	default:
		return "", fmt.Errorf("unknown short stock policy %q (want reject, freeze or loop)", value)
	}
}

// Builder turns one planned window into an overlay track.
type Builder struct {
	FFmpeg    *media.FFmpeg
	Prober    *media.Prober
	Generator transition.Generator
	Ledger    *ledger.Ledger
	Target    geometry.Size
	FPS       int
	Encoding  media.Encoding
	Policy    StockPolicy
	Logger    *slog.Logger
}

// BodyDuration returns how long the stock body plays for w.
func (b *Builder) BodyDuration(stock media.Info, w timeline.Window) float64 {
	if b.Policy == StockReject || b.Policy == "" {
		return min(stock.Duration, w.Duration())
	}
	return w.Duration()
}

// Build materializes the bridges and stock body, generates both transitions,
// and concatenates the five clips into a track anchored at
// w.TransitionInStart. Every file it writes is issued by the ledger.
func (b *Builder) Build(ctx context.Context, primary, stock media.Info, w timeline.Window, effects [2]string, logw io.Writer) (Track, error) {
	logger := logx.OrNop(b.Logger).With(slog.Int("segment", w.Seq))
	fps := b.fps()

	bridgeIn := b.Ledger.Path(fmt.Sprintf("seg%02d-bridge-in", w.Seq), "mp4")
	if err := b.FFmpeg.Run(ctx, "bridge-in", b.BridgeArgs(primary, w.TransitionInStart, w.MainSegmentInEnd, bridgeIn), logw); err != nil {
		return Track{}, err
	}

	bridgeOut := b.Ledger.Path(fmt.Sprintf("seg%02d-bridge-out", w.Seq), "mp4")
	if err := b.FFmpeg.Run(ctx, "bridge-out", b.BridgeArgs(primary, w.MainSegmentOutStart, w.MainSegmentOutEnd, bridgeOut), logw); err != nil {
		return Track{}, err
	}

	body := b.Ledger.Path(fmt.Sprintf("seg%02d-stock", w.Seq), "mp4")
	if err := b.FFmpeg.Run(ctx, "stock", b.StockArgs(stock, b.BodyDuration(stock, w), body), logw); err != nil {
		return Track{}, err
	}

	logger.Debug("generating transitions", slog.String("in", effects[0]), slog.String("out", effects[1]))
	in, err := b.Generator.Generate(ctx, bridgeIn, body, effects[0], b.Ledger.Path(fmt.Sprintf("seg%02d-transition-in", w.Seq), ""))
	if err != nil {
		return Track{}, err
	}
	out, err := b.Generator.Generate(ctx, body, bridgeOut, effects[1], b.Ledger.Path(fmt.Sprintf("seg%02d-transition-out", w.Seq), ""))
	if err != nil {
		return Track{}, err
	}
	for _, p := range []string{in.Phase1, in.Phase2, out.Phase1, out.Phase2} {
		b.Ledger.Track(p)
	}

	sources := []struct{ role, path string }{
		{RoleTransitionIn1, in.Phase1},
		{RoleTransitionIn2, in.Phase2},
		{RoleStock, body},
		{RoleTransitionOut1, out.Phase1},
		{RoleTransitionOut2, out.Phase2},
	}
	clips := make([]FittedClip, 0, len(sources))
	for _, src := range sources {
		info, err := b.Prober.Probe(ctx, src.path, logw)
		if err != nil {
			return Track{}, &faults.MediaOpenError{Role: src.role, Path: src.path, Err: err}
		}
		clips = append(clips, FittedClip{
			Role: src.role,
			Path: src.path,
			Info: info,
			Fit:  geometry.Fit(info.Size, b.Target),
		})
	}

	trackPath := b.Ledger.Path(fmt.Sprintf("seg%02d-track", w.Seq), "mp4")
	if err := b.FFmpeg.Run(ctx, "track", b.TrackArgs(clips, trackPath), logw); err != nil {
		return Track{}, err
	}
	info, err := b.Prober.Probe(ctx, trackPath, logw)
	if err != nil {
		return Track{}, &faults.MediaOpenError{Role: "track", Path: trackPath, Err: err}
	}

	logger.Info("track ready",
		slog.Float64("start", w.TransitionInStart),
		slog.Float64("duration", info.Duration),
		slog.Int("fps", fps),
	)

	return Track{
		Window:   w,
		Effects:  effects,
		Path:     trackPath,
		Start:    w.TransitionInStart,
		Duration: info.Duration,
		Clips:    clips,
	}, nil
}

// BridgeArgs extracts [from, to] of the primary, fitted and resampled.
func (b *Builder) BridgeArgs(primary media.Info, from, to float64, out string) []string {
	fit := geometry.Fit(primary.Size, b.Target)
	args := []string{
		"-ss", media.FormatSeconds(from),
		"-i", primary.Path,
		"-t", media.FormatSeconds(to - from),
		"-an",
		"-vf", ClipFilter(fit, b.Target, b.fps()),
	}
	args = append(args, b.Encoding.VideoArgs()...)
	return append(args, out)
}

// StockArgs writes the stock body of length dur, fitted and resampled. Short
// stock is looped or frozen on its last frame according to the policy.
func (b *Builder) StockArgs(stock media.Info, dur float64, out string) []string {
	fit := geometry.Fit(stock.Size, b.Target)
	filter := ClipFilter(fit, b.Target, b.fps())

	var args []string
	switch {
	case b.Policy == StockLoop && stock.Duration < dur:
		args = append(args, "-stream_loop", "-1")
	case b.Policy == StockFreeze && stock.Duration < dur:
		filter += ",tpad=stop_mode=clone:stop_duration=" + media.FormatSeconds(dur-stock.Duration)
	}

	args = append(args,
		"-i", stock.Path,
		"-t", media.FormatSeconds(dur),
		"-an",
		"-vf", filter,
	)
	args = append(args, b.Encoding.VideoArgs()...)
	return append(args, out)
}

// TrackArgs concatenates clips into one track file.
func (b *Builder) TrackArgs(clips []FittedClip, out string) []string {
	args := make([]string, 0, 2*len(clips)+8)
	for _, clip := range clips {
		args = append(args, "-i", clip.Path)
	}
	args = append(args,
		"-filter_complex", BuildTrackGraph(clips, b.Target, b.fps()),
		"-map", "[v]",
		"-an",
	)
	args = append(args, b.Encoding.VideoArgs()...)
	return append(args, out)
}

func (b *Builder) fps() int {
	if b.FPS <= 0 {
		return IntermediateFPS
	}
	return b.FPS
}
