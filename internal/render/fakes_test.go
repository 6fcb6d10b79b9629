package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"stockmerge/internal/faults"
	"stockmerge/internal/media"
	"stockmerge/internal/transition"
)

// fakeMedia stands in for ffmpeg and ffprobe. ffmpeg "renders" by writing the
// requested -t duration into the output file; ffprobe answers from the probes
// map or, for files written by ffmpeg, from their contents.
type fakeMedia struct {
	mu     sync.Mutex
	probes map[string]string
	calls  [][]string
	failOn string
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{probes: map[string]string{}}
}

func probeJSON(w, h int, rate string, duration float64, audio bool) string {
	streams := fmt.Sprintf(`{"codec_type":"video","codec_name":"h264","width":%d,"height":%d,"r_frame_rate":"%s"}`, w, h, rate)
	if audio {
		streams += `,{"codec_type":"audio","codec_name":"aac"}`
	}
	return fmt.Sprintf(`{"streams":[%s],"format":{"duration":"%v"}}`, streams, duration)
}

func (f *fakeMedia) Run(ctx context.Context, command string, args []string, opts media.RunOptions) (media.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return media.RunResult{}, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{command}, args...))
	f.mu.Unlock()

	target := args[len(args)-1]
	switch command {
	case "ffprobe":
		f.mu.Lock()
		out, ok := f.probes[target]
		f.mu.Unlock()
		if ok {
			return media.RunResult{Stdout: []byte(out)}, nil
		}
		data, err := os.ReadFile(target)
		if err != nil {
			return media.RunResult{Stderr: []byte(target + ": No such file or directory")}, errors.New("exit status 1")
		}
		dur, _ := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		return media.RunResult{Stdout: []byte(probeJSON(1920, 1080, "30/1", dur, false))}, nil
	case "ffmpeg":
		if f.failOn != "" && strings.Contains(strings.Join(args, " "), f.failOn) {
			return media.RunResult{Stderr: []byte("Conversion failed!")}, errors.New("exit status 1")
		}
		dur := "1"
		for i, a := range args {
			if a == "-t" && i+1 < len(args) {
				dur = args[i+1]
			}
		}
		if err := os.WriteFile(target, []byte(dur), 0o644); err != nil {
			return media.RunResult{}, err
		}
		return media.RunResult{}, nil
	}
	return media.RunResult{}, fmt.Errorf("unexpected command %s", command)
}

func (f *fakeMedia) ffmpegCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if c[0] == "ffmpeg" {
			out = append(out, c[1:])
		}
	}
	return out
}

// inspections reports how many stream queries were made against path.
func (f *fakeMedia) inspections(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c[0] == "ffprobe" && c[len(c)-1] == path {
			n++
		}
	}
	return n
}

// fakeGenerator writes two 0.12s phases, or fails with a TransitionError.
type fakeGenerator struct {
	mu    sync.Mutex
	fail  bool
	calls []string
}

func (g *fakeGenerator) Generate(ctx context.Context, clipA, clipB, effect, prefix string) (transition.Phases, error) {
	g.mu.Lock()
	g.calls = append(g.calls, effect)
	g.mu.Unlock()
	if g.fail {
		return transition.Phases{}, &faults.TransitionError{Effect: effect, From: clipA, To: clipB, Err: errors.New("exit status 2")}
	}
	phases := transition.PhasePaths(prefix, "mp4")
	if err := os.WriteFile(phases.Phase1, []byte("0.12"), 0o644); err != nil {
		return transition.Phases{}, err
	}
	if err := os.WriteFile(phases.Phase2, []byte("0.12"), 0o644); err != nil {
		return transition.Phases{}, err
	}
	return phases, nil
}
