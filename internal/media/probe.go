package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"stockmerge/internal/geometry"
)

// ErrNoVideoStream is returned when a file has no decodable video stream.
var ErrNoVideoStream = errors.New("no video stream")

// Info is the subset of ffprobe output the pipeline relies on.
type Info struct {
	Path     string        `json:"path"`
	Size     geometry.Size `json:"size"`
	Duration float64       `json:"duration"`
	// FrameRate is the native rate as a rational ("30000/1001"), suitable
	// for passing straight to -r.
	FrameRate string `json:"frame_rate"`
	FPS       float64 `json:"fps"`
	HasAudio  bool    `json:"has_audio"`
	Codec     string  `json:"codec"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
	Tags         struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
}

// Prober reads stream metadata with ffprobe.
type Prober struct {
	Runner Runner
	Binary string
}

// NewProber returns a prober using binary, or "ffprobe" from PATH.
func NewProber(runner Runner, binary string) *Prober {
	if runner == nil {
		runner = CmdRunner{}
	}
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &Prober{Runner: runner, Binary: binary}
}

// Probe inspects path. Output is mirrored to logw when it is non-nil.
func (p *Prober) Probe(ctx context.Context, path string, logw io.Writer) (Info, error) {
	args := []string{
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-print_format", "json",
		path,
	}

	result, err := p.Runner.Run(ctx, p.Binary, args, RunOptions{Stderr: logw})
	if err != nil {
		if stderr := lastLines(result.Stderr, 3); stderr != "" {
			return Info{}, fmt.Errorf("ffprobe: %w (stderr: %s)", err, stderr)
		}
		return Info{}, fmt.Errorf("ffprobe: %w", err)
	}
	if len(result.Stdout) == 0 {
		return Info{}, errors.New("ffprobe produced no output")
	}
	return ParseProbe(path, result.Stdout)
}

// ParseProbe decodes ffprobe JSON output for path.
func ParseProbe(path string, raw []byte) (Info, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Info{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	info := Info{Path: path}
	var video *ffprobeStream
	for i := range parsed.Streams {
		s := &parsed.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if video == nil || video.Width <= 0 || video.Height <= 0 {
		return Info{}, ErrNoVideoStream
	}

	info.Size = geometry.Size{Width: video.Width, Height: video.Height}
	if rot := strings.TrimPrefix(strings.TrimSpace(video.Tags.Rotate), "-"); rot == "90" || rot == "270" {
		info.Size = geometry.Size{Width: video.Height, Height: video.Width}
	}
	info.Codec = video.CodecName

	info.FrameRate = video.RFrameRate
	fps, ok := ParseRate(video.RFrameRate)
	if !ok {
		info.FrameRate = video.AvgFrameRate
		fps, ok = ParseRate(video.AvgFrameRate)
	}
	if !ok {
		info.FrameRate, fps = "30", 30
	}
	info.FPS = fps

	info.Duration = parseSeconds(parsed.Format.Duration)
	if info.Duration <= 0 {
		info.Duration = parseSeconds(video.Duration)
	}
	if info.Duration <= 0 {
		return Info{}, fmt.Errorf("unknown duration")
	}

	return info, nil
}

// ParseRate parses "30000/1001" or "25" into frames per second.
func ParseRate(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	num, den, found := strings.Cut(value, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	if !found {
		return n, true
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d <= 0 {
		return 0, false
	}
	return n / d, true
}

func parseSeconds(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return v
}

func lastLines(data []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
