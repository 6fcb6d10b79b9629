package transition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"stockmerge/internal/logx"
	"stockmerge/internal/media"
)

// Script drives an external transition program:
//
//	<interpreter> <script> -i A B --animation E --num_frames N --max_brightness B -o PREFIX
//
// The program must write PREFIX_phase1.mp4 and PREFIX_phase2.mp4.
type Script struct {
	Runner        media.Runner
	Interpreter   string
	Path          string
	NumFrames     int
	MaxBrightness float64
	Timeout       time.Duration
	Logger        *slog.Logger
}

// NewScript returns a script backend with default animation parameters.
func NewScript(runner media.Runner, interpreter, path string, logger *slog.Logger) *Script {
	if runner == nil {
		runner = media.CmdRunner{}
	}
	if strings.TrimSpace(interpreter) == "" {
		interpreter = "python3"
	}
	return &Script{
		Runner:        runner,
		Interpreter:   interpreter,
		Path:          path,
		NumFrames:     DefaultNumFrames,
		MaxBrightness: DefaultMaxBrightness,
		Timeout:       DefaultTimeout,
		Logger:        logx.OrNop(logger),
	}
}

// Args returns the command line for one invocation, excluding the
// interpreter.
func (s *Script) Args(clipA, clipB, effect, prefix string) []string {
	return []string{
		s.Path,
		"-i", clipA, clipB,
		"--animation", effect,
		"--num_frames", strconv.Itoa(s.NumFrames),
		"--max_brightness", strconv.FormatFloat(s.MaxBrightness, 'f', -1, 64),
		"-o", prefix,
	}
}

func (s *Script) Generate(ctx context.Context, clipA, clipB, effect, prefix string) (Phases, error) {
	if strings.TrimSpace(s.Path) == "" {
		return Phases{}, transitionError(effect, clipA, clipB, errors.New("transition script path not configured"))
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logFile, err := os.OpenFile(prefix+".log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Phases{}, transitionError(effect, clipA, clipB, fmt.Errorf("open transition log: %w", err))
	}
	defer logFile.Close()

	args := s.Args(clipA, clipB, effect, prefix)
	fmt.Fprintf(logFile, "$ %s %s\n", s.Interpreter, strings.Join(args, " "))
	s.Logger.Debug("transition script",
		slog.String("effect", effect),
		slog.String("from", clipA),
		slog.String("to", clipB),
		slog.String("prefix", prefix),
	)

	started := time.Now()
	result, err := s.Runner.Run(runCtx, s.Interpreter, args, media.RunOptions{Stdout: logFile, Stderr: logFile})
	if err != nil {
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			err = fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded)
		case len(result.Stderr) > 0:
			err = fmt.Errorf("%w (stderr: %s)", err, tail(result.Stderr))
		}
		return Phases{}, transitionError(effect, clipA, clipB, err)
	}

	phases := PhasePaths(prefix, "mp4")
	if err := phases.verify(); err != nil {
		return Phases{}, transitionError(effect, clipA, clipB, err)
	}

	s.Logger.Debug("transition ready", slog.String("prefix", prefix), slog.Duration("elapsed", time.Since(started)))
	return phases, nil
}

func tail(data []byte) string {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return strings.Join(lines, " | ")
}

var _ Generator = (*Script)(nil)
