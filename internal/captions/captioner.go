package captions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"stockmerge/internal/faults"
	"stockmerge/internal/ledger"
	"stockmerge/internal/logx"
	"stockmerge/internal/media"
)

// Request describes one caption job.
type Request struct {
	Input  string
	Output string
	// WordsPath supplies word timings; when empty the Transcriber is used.
	WordsPath string
	// GroupedPath receives the grouped caption file. Empty places
	// grouped_subtitles.json next to Output.
	GroupedPath string
	WorkDir     string
}

// Result reports what a caption run produced.
type Result struct {
	Output      string
	GroupedPath string
	Words       int
	Cues        []Cue
	Warnings    []faults.CleanupWarning
}

// Captioner runs transcription, grouping and burning.
type Captioner struct {
	FFmpeg      *media.FFmpeg
	Prober      *media.Prober
	Transcriber Transcriber
	Encoding    media.Encoding
	Style       Style
	Logger      *slog.Logger
}

// Run captions req.Input into req.Output. The original audio is copied.
func (c *Captioner) Run(ctx context.Context, req Request) (res Result, err error) {
	logger := logx.OrNop(c.Logger)
	if strings.TrimSpace(req.Input) == "" {
		return Result{}, &faults.ConfigurationError{Issues: []faults.Issue{{Field: "input", Message: "input video is required"}}}
	}
	if strings.TrimSpace(req.Output) == "" {
		return Result{}, &faults.ConfigurationError{Issues: []faults.Issue{{Field: "output", Message: "output is required"}}}
	}
	if req.WordsPath == "" && c.Transcriber == nil {
		return Result{}, &faults.ConfigurationError{Issues: []faults.Issue{{Field: "words", Message: "provide a words file or enable transcription"}}}
	}

	info, err := c.Prober.Probe(ctx, req.Input, nil)
	if err != nil {
		return Result{}, &faults.MediaOpenError{Role: "input", Path: req.Input, Err: err}
	}

	l, err := ledger.New(req.WorkDir, ledger.Options{Logger: logger})
	if err != nil {
		return Result{}, err
	}
	defer func() {
		res.Warnings = l.ReleaseAll()
	}()

	logw, err := l.CreateFile("caption", "log")
	if err != nil {
		return Result{}, err
	}

	words, err := c.words(ctx, req, info, l, logw)
	if err != nil {
		return Result{}, err
	}

	groups := GroupWordsBySecond(words)
	grouped := req.GroupedPath
	if grouped == "" {
		grouped = filepath.Join(filepath.Dir(req.Output), GroupedFileName)
	}
	if err := WriteGrouped(grouped, groups); err != nil {
		return Result{}, err
	}

	cues := BuildCues(groups, info.Duration)
	logger.Info("burning captions",
		slog.String("input", req.Input),
		slog.Int("words", len(words)),
		slog.Int("cues", len(cues)),
	)

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return Result{}, fmt.Errorf("ensure output directory: %w", err)
	}
	if err := c.FFmpeg.Run(ctx, "caption", c.BurnArgs(req.Input, req.Output, cues), logw); err != nil {
		return Result{}, err
	}

	return Result{
		Output:      req.Output,
		GroupedPath: grouped,
		Words:       len(words),
		Cues:        cues,
	}, nil
}

func (c *Captioner) words(ctx context.Context, req Request, info media.Info, l *ledger.Ledger, logw io.Writer) ([]Word, error) {
	if req.WordsPath != "" {
		return LoadWords(req.WordsPath)
	}
	if !info.HasAudio {
		return nil, &faults.MediaOpenError{Role: "input", Path: req.Input, Err: errors.New("no audio stream to transcribe")}
	}
	audio := l.Path("audio", "mp3")
	if err := c.FFmpeg.Run(ctx, "extract-audio", ExtractAudioArgs(req.Input, audio), logw); err != nil {
		return nil, err
	}
	return c.Transcriber.Transcribe(ctx, audio)
}

// ExtractAudioArgs produces a small mono mp3 suitable for upload.
func ExtractAudioArgs(input, output string) []string {
	return []string{
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-b:a", "64k",
		output,
	}
}

// BurnArgs draws cues over input and copies its audio unchanged.
func (c *Captioner) BurnArgs(input, output string, cues []Cue) []string {
	args := []string{
		"-i", input,
		"-vf", Filter(cues, c.Style),
		"-map", "0:v:0",
		"-map", "0:a?",
	}
	args = append(args, c.Encoding.VideoArgs()...)
	args = append(args, "-c:a", "copy", output)
	return args
}
