package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"stockmerge/internal/faults"
	"stockmerge/internal/geometry"
	"stockmerge/internal/ledger"
	"stockmerge/internal/logx"
	"stockmerge/internal/media"
	"stockmerge/internal/render/state"
	"stockmerge/internal/timeline"
	"stockmerge/internal/transition"
)

// shortStockTolerance absorbs container rounding when comparing durations.
const shortStockTolerance = 0.05

// Job is one merge request.
type Job struct {
	Primary     string
	Stocks      []string
	Output      string
	Requests    []timeline.Request
	Timing      timeline.Timing
	Backend     string
	Effects     []string
	Seed        int64
	Concurrency int
	Policy      StockPolicy
	WorkDir     string
	// LogsDir receives a copy of a failing segment's ffmpeg log before the run
	// directory is removed. Empty disables it.
	LogsDir string
	Grace   time.Duration
	Force   bool
}

// Preflight is everything known about a job before any media is written.
type Preflight struct {
	Windows []timeline.Window
	Primary media.Info
	Stocks  map[int]media.Info
}

// Target returns the frame size every overlay is fitted to.
func (p Preflight) Target() geometry.Size {
	return p.Primary.Size
}

// Result captures the outcome of a merge.
type Result struct {
	Output   string
	RunDir   string
	Windows  []timeline.Window
	Tracks   []Track
	Seed     int64
	Effects  []string
	Decision state.Decision
	Warnings []faults.CleanupWarning
	Elapsed  time.Duration
}

// Skipped reports whether the merge was skipped as up to date.
func (r Result) Skipped() bool {
	return r.Decision.Skip()
}

// Service coordinates a merge: planning, probing, track building and the
// final composite.
type Service struct {
	FFmpeg    *media.FFmpeg
	Prober    *media.Prober
	Generator transition.Generator
	Encoding  media.Encoding
	FPS       int
	Logger    *slog.Logger
	Reporter  ProgressReporter
}

// NewService wires a service from its collaborators.
func NewService(ffmpeg *media.FFmpeg, prober *media.Prober, gen transition.Generator, enc media.Encoding, logger *slog.Logger) *Service {
	return &Service{
		FFmpeg:    ffmpeg,
		Prober:    prober,
		Generator: gen,
		Encoding:  enc,
		FPS:       IntermediateFPS,
		Logger:    logx.OrNop(logger),
	}
}

// Preflight validates the job, probes its inputs, and checks every window
// against the primary's duration and the stock clip lengths. Nothing is
// written.
func (s *Service) Preflight(ctx context.Context, job Job) (Preflight, error) {
	var cerr faults.ConfigurationError
	if strings.TrimSpace(job.Primary) == "" {
		cerr.Add("main_video", "is required")
	}
	if strings.TrimSpace(job.Output) == "" {
		cerr.Add("output", "is required")
	} else if job.Primary != "" && sameFile(job.Primary, job.Output) {
		cerr.Add("output", "must not overwrite main_video")
	}
	if err := cerr.OrNil(); err != nil {
		return Preflight{}, err
	}

	windows, err := timeline.Plan(job.Requests, len(job.Stocks), job.Timing)
	if err != nil {
		return Preflight{}, err
	}

	primary, err := s.Prober.Probe(ctx, job.Primary, nil)
	if err != nil {
		return Preflight{}, &faults.MediaOpenError{Role: "primary", Path: job.Primary, Err: err}
	}
	if err := timeline.CheckBounds(windows, primary.Duration); err != nil {
		return Preflight{}, err
	}

	used := lo.Uniq(lo.Map(windows, func(w timeline.Window, _ int) int { return w.StockIndex }))
	stocks := make(map[int]media.Info, len(used))
	for _, idx := range used {
		info, err := s.Prober.Probe(ctx, job.Stocks[idx], nil)
		if err != nil {
			return Preflight{}, &faults.MediaOpenError{Role: fmt.Sprintf("stock[%d]", idx), Path: job.Stocks[idx], Err: err}
		}
		stocks[idx] = info
	}

	if job.Policy == StockReject || job.Policy == "" {
		for _, w := range windows {
			stock := stocks[w.StockIndex]
			if stock.Duration+shortStockTolerance < w.Duration() {
				cerr.Add("overlays", "%s needs %s of stock but %s is only %s long (set stock.short_policy to freeze or loop)",
					w.Request, media.FormatSeconds(w.Duration())+"s", filepath.Base(stock.Path), media.FormatSeconds(stock.Duration)+"s")
			}
		}
		if err := cerr.OrNil(); err != nil {
			return Preflight{}, err
		}
	}

	return Preflight{Windows: windows, Primary: primary, Stocks: stocks}, nil
}

// Run preflights job and executes it. The run directory is released on every
// path out, including failures; cleanup warnings are returned in the result.
func (s *Service) Run(ctx context.Context, job Job) (Result, error) {
	started := time.Now()
	pre, err := s.Preflight(ctx, job)
	if err != nil {
		return Result{Output: job.Output, Elapsed: time.Since(started)}, err
	}
	res, err := s.RunPlanned(ctx, job, pre)
	res.Elapsed = time.Since(started)
	return res, err
}

// RunPlanned executes job using a Preflight already computed for it.
func (s *Service) RunPlanned(ctx context.Context, job Job, pre Preflight) (res Result, err error) {
	started := time.Now()
	res.Output = job.Output
	defer func() { res.Elapsed = time.Since(started) }()

	res.Windows = pre.Windows

	picker, err := transition.NewPicker(job.Effects, job.Seed)
	if err != nil {
		cerr := &faults.ConfigurationError{}
		cerr.Add("transitions.effects", "%v", err)
		return res, cerr
	}
	res.Seed = picker.Seed()

	statePath := state.PathFor(job.Output)
	inputHash, err := s.inputHash(job)
	if err != nil {
		return res, err
	}
	prior, _ := state.Load(statePath)
	res.Decision = state.Detect(prior, inputHash, job.Output, job.Seed, job.Force)
	if res.Decision.Skip() {
		s.Logger.Info("output up to date", slog.String("output", job.Output))
		return res, nil
	}

	// Effects are drawn up front in window order so the selection does not
	// depend on how segments are scheduled.
	res.Effects = picker.Draw(2 * len(pre.Windows))

	l, err := ledger.New(job.WorkDir, ledger.Options{Grace: job.Grace, Logger: s.Logger})
	if err != nil {
		return res, err
	}
	res.RunDir = l.Dir()
	defer func() { res.Warnings = l.ReleaseAll() }()

	s.Logger.Info("merge started",
		slog.String("primary", job.Primary),
		slog.String("target", pre.Target().String()),
		slog.Int("segments", len(pre.Windows)),
		slog.Int64("seed", res.Seed),
		slog.String("run_dir", l.Dir()),
	)

	tracks, err := s.buildTracks(ctx, l, job, pre, res.Effects)
	if err != nil {
		return res, err
	}
	res.Tracks = tracks

	logFile, err := l.CreateFile("compose", "log")
	if err != nil {
		return res, err
	}
	compositor := &Compositor{FFmpeg: s.FFmpeg, Ledger: l, Encoding: s.Encoding}
	if err := compositor.Compose(ctx, Plan{Primary: pre.Primary, Tracks: tracks}, job.Output, logFile); err != nil {
		s.preserveLog(job, logFile.Name(), "compose")
		return res, err
	}

	js := &state.JobState{
		InputHash:  inputHash,
		RenderedAt: time.Now().UTC(),
		Output:     job.Output,
		Primary:    job.Primary,
		DurationS:  pre.Primary.Duration,
		Seed:       res.Seed,
		Effects:    res.Effects,
		Segments:   len(tracks),
	}
	if err := js.Save(statePath); err != nil {
		s.Logger.Warn("save merge state", slog.String("path", statePath), logx.Err(err))
	}

	s.Logger.Info("merge complete", slog.String("output", job.Output), slog.Duration("elapsed", time.Since(started)))
	return res, nil
}

func (s *Service) buildTracks(ctx context.Context, l *ledger.Ledger, job Job, pre Preflight, effects []string) ([]Track, error) {
	reporter := s.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	builder := &Builder{
		FFmpeg:    s.FFmpeg,
		Prober:    s.Prober,
		Generator: s.Generator,
		Ledger:    l,
		Target:    pre.Target(),
		FPS:       s.FPS,
		Encoding:  s.Encoding,
		Policy:    job.Policy,
		Logger:    s.Logger,
	}

	concurrency := job.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	tracks := make([]Track, len(pre.Windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, w := range pre.Windows {
		i, w := i, w
		seg := Segment{
			Window:  w,
			Stock:   pre.Stocks[w.StockIndex],
			Effects: [2]string{effects[2*i], effects[2*i+1]},
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reporter.Start(seg)

			logFile, err := l.CreateFile(fmt.Sprintf("seg%02d-ffmpeg", w.Seq), "log")
			if err != nil {
				reporter.Complete(SegmentResult{Segment: seg, Err: err})
				return err
			}

			track, err := builder.Build(gctx, pre.Primary, seg.Stock, w, seg.Effects, logFile)
			if err != nil {
				err = &faults.SegmentError{Start: w.Start, End: w.End, StockIndex: w.StockIndex, Err: err}
				if !errors.Is(err, context.Canceled) {
					s.preserveLog(job, logFile.Name(), fmt.Sprintf("segment-%02d", w.Seq))
				}
			}
			reporter.Complete(SegmentResult{Segment: seg, Track: track, LogPath: logFile.Name(), Err: err})
			if err != nil {
				return err
			}
			tracks[i] = track
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (s *Service) inputHash(job Job) (string, error) {
	primary, err := state.Stamp(job.Primary)
	if err != nil {
		return "", &faults.MediaOpenError{Role: "primary", Path: job.Primary, Err: err}
	}
	stocks := make([]state.FileStamp, len(job.Stocks))
	for i, path := range job.Stocks {
		stamp, err := state.Stamp(path)
		if err != nil {
			return "", &faults.MediaOpenError{Role: fmt.Sprintf("stock[%d]", i), Path: path, Err: err}
		}
		stocks[i] = stamp
	}
	return state.InputHash(state.JobInput{
		Primary:     primary,
		Stocks:      stocks,
		Requests:    job.Requests,
		PreRoll:     job.Timing.PreRoll,
		Bridge:      job.Timing.Bridge,
		Backend:     job.Backend,
		Effects:     job.Effects,
		Seed:        job.Seed,
		ShortPolicy: string(job.Policy),
		Encoding:    s.Encoding,
	}), nil
}

// preserveLog copies a run-directory log into the job's logs dir so it
// survives cleanup.
func (s *Service) preserveLog(job Job, src, name string) {
	if strings.TrimSpace(job.LogsDir) == "" {
		return
	}
	dst := filepath.Join(job.LogsDir, fmt.Sprintf("%s-%s.log", name, time.Now().Format("20060102-150405")))
	if err := copyFile(src, dst); err != nil {
		s.Logger.Warn("preserve log", slog.String("path", src), logx.Err(err))
		return
	}
	s.Logger.Info("failure log kept", slog.String("path", dst))
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
