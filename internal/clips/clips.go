// Package clips cuts numbered sub-clips out of a video.
package clips

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"stockmerge/internal/faults"
	"stockmerge/internal/logx"
	"stockmerge/internal/media"
	"stockmerge/pkg/overlayplan"
)

// DirName is the folder created next to the input when no output dir is given.
const DirName = "clips"

// Range is a half-open cut interval in seconds.
type Range struct {
	Start float64
	End   float64
}

func (r Range) Duration() float64 { return r.End - r.Start }

func (r Range) String() string {
	return media.FormatSeconds(r.Start) + "," + media.FormatSeconds(r.End)
}

// ParseRange reads "start,end". Either side may be seconds or a timecode.
func ParseRange(value string) (Range, error) {
	startRaw, endRaw, ok := strings.Cut(value, ",")
	if !ok {
		return Range{}, fmt.Errorf("range %q: want start,end", value)
	}
	start, err := overlayplan.ParseTimecode(startRaw)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: start: %w", value, err)
	}
	end, err := overlayplan.ParseTimecode(endRaw)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: end: %w", value, err)
	}
	if start >= end {
		return Range{}, fmt.Errorf("range %q: start must be less than end", value)
	}
	return Range{Start: start, End: end}, nil
}

// Cutter re-encodes each range of an input into its own file.
type Cutter struct {
	FFmpeg   *media.FFmpeg
	Prober   *media.Prober
	Encoding media.Encoding
	Logger   *slog.Logger
}

// OutputDir returns dir, or <dir of input>/clips when dir is empty.
func OutputDir(input, dir string) string {
	if strings.TrimSpace(dir) != "" {
		return dir
	}
	return filepath.Join(filepath.Dir(input), DirName)
}

// ClipPath names the n-th clip (1-based).
func ClipPath(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("clip_%d.mp4", n))
}

// Cut writes clip_1.mp4 ... clip_N.mp4 into outDir and returns their paths in
// range order. Ranges past the end of the input are rejected before any
// encoding starts.
func (c *Cutter) Cut(ctx context.Context, input string, ranges []Range, outDir string, logw io.Writer) ([]string, error) {
	logger := logx.OrNop(c.Logger)
	if len(ranges) == 0 {
		return nil, &faults.ConfigurationError{Issues: []faults.Issue{{Field: "range", Message: "at least one range is required"}}}
	}

	info, err := c.Prober.Probe(ctx, input, logw)
	if err != nil {
		return nil, &faults.MediaOpenError{Role: "input", Path: input, Err: err}
	}

	cerr := &faults.ConfigurationError{}
	for i, r := range ranges {
		if r.Start < 0 || r.Start >= r.End {
			cerr.Add(fmt.Sprintf("range[%d]", i), "%s is not a valid interval", r)
		} else if info.Duration > 0 && r.End > info.Duration {
			cerr.Add(fmt.Sprintf("range[%d]", i), "%s ends after the input (%ss)", r, media.FormatSeconds(info.Duration))
		}
	}
	if err := cerr.OrNil(); err != nil {
		return nil, err
	}

	outDir = OutputDir(input, outDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure clips directory: %w", err)
	}

	paths := lo.Map(ranges, func(_ Range, i int) string { return ClipPath(outDir, i+1) })
	for i, r := range ranges {
		logger.Info("cutting clip", slog.Int("clip", i+1), slog.String("range", r.String()))
		if err := c.FFmpeg.Run(ctx, fmt.Sprintf("clip-%d", i+1), c.Args(input, r, paths[i], info.HasAudio), logw); err != nil {
			return paths[:i], err
		}
	}
	return paths, nil
}

// Args builds the ffmpeg invocation for one clip.
func (c *Cutter) Args(input string, r Range, output string, audio bool) []string {
	args := []string{
		"-ss", media.FormatSeconds(r.Start),
		"-i", input,
		"-t", media.FormatSeconds(r.Duration()),
		"-map", "0:v:0",
	}
	args = append(args, c.Encoding.VideoArgs()...)
	if audio {
		args = append(args, "-map", "0:a:0")
		args = append(args, c.Encoding.AudioArgs()...)
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-movflags", "+faststart", output)
	return args
}
