package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"stockmerge/internal/logx"
)

// Encoding is the resolved codec configuration for rendered files.
type Encoding struct {
	VideoCodec   string
	CRF          int
	Preset       string
	PixelFormat  string
	AudioCodec   string
	AudioBitrate string
}

// DefaultEncoding returns libx264/aac settings.
func DefaultEncoding() Encoding {
	return Encoding{
		VideoCodec:   "libx264",
		CRF:          18,
		Preset:       "medium",
		PixelFormat:  "yuv420p",
		AudioCodec:   "aac",
		AudioBitrate: "192k",
	}
}

// VideoArgs returns the video encoder flags.
func (e Encoding) VideoArgs() []string {
	args := []string{"-c:v", e.VideoCodec}
	if e.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(e.CRF))
	}
	if e.Preset != "" && (e.VideoCodec == "libx264" || e.VideoCodec == "libx265") {
		args = append(args, "-preset", e.Preset)
	}
	if e.PixelFormat != "" {
		args = append(args, "-pix_fmt", e.PixelFormat)
	}
	return args
}

// AudioArgs returns the audio encoder flags.
func (e Encoding) AudioArgs() []string {
	args := []string{"-c:a", e.AudioCodec}
	if e.AudioBitrate != "" {
		args = append(args, "-b:a", e.AudioBitrate)
	}
	return args
}

// FFmpeg runs ffmpeg invocations through a Runner.
type FFmpeg struct {
	Runner Runner
	Binary string
	Logger *slog.Logger
}

// NewFFmpeg returns an executor using binary, or "ffmpeg" from PATH.
func NewFFmpeg(runner Runner, binary string, logger *slog.Logger) *FFmpeg {
	if runner == nil {
		runner = CmdRunner{}
	}
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{Runner: runner, Binary: binary, Logger: logx.OrNop(logger)}
}

// Run executes ffmpeg with -hide_banner -y prepended. stderr is mirrored to
// logw when it is non-nil; the tail of it is attached to any error.
func (f *FFmpeg) Run(ctx context.Context, step string, args []string, logw io.Writer) error {
	full := append([]string{"-hide_banner", "-y"}, args...)
	if logw != nil {
		fmt.Fprintf(logw, "$ %s %s\n", f.Binary, strings.Join(full, " "))
	}
	f.Logger.Debug("ffmpeg", slog.String("step", step), slog.String("args", strings.Join(full, " ")))

	result, err := f.Runner.Run(ctx, f.Binary, full, RunOptions{Stderr: logw})
	if err != nil {
		if tail := lastLines(result.Stderr, 3); tail != "" {
			return fmt.Errorf("ffmpeg %s: %w (stderr: %s)", step, err, tail)
		}
		return fmt.Errorf("ffmpeg %s: %w", step, err)
	}
	return nil
}

// FormatSeconds renders a time value for ffmpeg arguments and filters.
func FormatSeconds(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}
