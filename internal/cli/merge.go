package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"stockmerge/internal/config"
	"stockmerge/internal/logx"
	"stockmerge/internal/media"
	"stockmerge/internal/render"
	"stockmerge/internal/tools"
	"stockmerge/internal/transition"
	"stockmerge/internal/tui"
)

var (
	mergeOut         string
	mergeSeed        int64
	mergeConcurrency int
	mergeBackend     string
	mergeForce       bool
	mergeNoProgress  bool
)

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Splice the configured stock overlays into the main video",
		Args:  cobra.NoArgs,
		RunE:  runMerge,
	}

	cmd.Flags().StringVar(&mergeOut, "out", "", "Output path (overrides the job's output)")
	cmd.Flags().Int64Var(&mergeSeed, "seed", 0, "Effect seed; 0 picks a random seed each run")
	cmd.Flags().IntVar(&mergeConcurrency, "concurrency", 0, "Segments built in parallel (overrides the job's concurrency)")
	cmd.Flags().StringVar(&mergeBackend, "backend", "", "Transition backend: script or xfade")
	cmd.Flags().BoolVar(&mergeForce, "force", false, "Merge even if the output is up to date")
	cmd.Flags().BoolVar(&mergeNoProgress, "no-progress", false, "Disable interactive progress output")

	return cmd
}

// applyMergeFlags layers explicitly set flags over the job file.
func applyMergeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("out") {
		out, err := filepath.Abs(mergeOut)
		if err != nil {
			return fmt.Errorf("resolve output path: %w", err)
		}
		cfg.Output = out
	}
	if flags.Changed("seed") {
		cfg.Transitions.Seed = mergeSeed
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = mergeConcurrency
	}
	if flags.Changed("backend") {
		cfg.Transitions.Backend = mergeBackend
	}
	return nil
}

func runMerge(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmd.SetContext(ctx)

	jp, cfg, err := loadJob()
	if err != nil {
		return err
	}
	if err := applyMergeFlags(cmd, &cfg); err != nil {
		return err
	}
	if err := config.Err(cfg.Validate()); err != nil {
		return err
	}
	if err := jp.EnsureDirs(); err != nil {
		return err
	}

	logger, closer, err := openLogger(cmd, jp.LogsDir, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.Info("stockmerge merge", slog.String("config", jp.ConfigFile))

	job, err := cfg.Job()
	if err != nil {
		return err
	}
	job.Force = mergeForce
	job.WorkDir = jp.WorkDir
	job.LogsDir = jp.LogsDir

	runner := newRunner()
	need := []string{tools.FFmpeg, tools.FFprobe}
	if cfg.Transitions.Backend == config.BackendScript {
		need = append(need, tools.Interpreter)
	}
	statuses, err := requireTools(cmd, runner, cfg, need...)
	for _, st := range statuses {
		logger.Debug("tool", slog.String("tool", st.Tool), slog.String("version", st.Version), slog.Bool("satisfied", st.Satisfied))
	}
	if err != nil {
		return err
	}

	svc := newMergeService(runner, statuses, cfg, logger)
	out := cmd.OutOrStdout()
	mode := tui.DetectMode(out, mergeNoProgress, outputJSON)

	var status *tui.StatusWriter
	if mode == tui.ModeTUI {
		status = tui.NewStatusWriter(out)
		status.Update("Probing inputs")
	}
	pre, err := svc.Preflight(ctx, job)
	if status != nil {
		if err != nil {
			status.Stop()
		} else {
			status.Done(fmt.Sprintf("Probed %d input(s)", 1+len(pre.Stocks)))
		}
	}
	if err != nil {
		if mode == tui.ModeJSON {
			_ = writeMergeJSON(cmd, render.Result{Output: job.Output}, err)
		}
		return err
	}
	logger.Info("preflight complete",
		slog.Int("segments", len(pre.Windows)),
		slog.String("target", pre.Target().String()),
		slog.String("progress", mode.String()),
	)

	var res render.Result
	switch mode {
	case tui.ModeTUI:
		model := tui.NewProgressModel("stockmerge → "+filepath.Base(job.Output), tui.SegmentColumns)
		for _, w := range pre.Windows {
			model.AddRow(tui.SegmentKey(w), tui.SegmentRow(w, job.Stocks[w.StockIndex], [2]string{}))
		}
		model.OnCancel(cancel)
		err = tui.RunWithWork(out, model, func(send func(tea.Msg)) error {
			svc.Reporter = tui.NewSegmentReporter(send, len(pre.Windows))
			var runErr error
			res, runErr = svc.RunPlanned(ctx, job, pre)
			return runErr
		})
	case tui.ModePlain:
		svc.Reporter = tui.NewPlainReporter(out, len(pre.Windows))
		res, err = svc.RunPlanned(ctx, job, pre)
	default:
		res, err = svc.RunPlanned(ctx, job, pre)
	}

	for _, w := range res.Warnings {
		logger.Warn("cleanup warning", slog.String("path", w.Path), logx.Err(w.Err))
	}

	if mode == tui.ModeJSON {
		if jerr := writeMergeJSON(cmd, res, err); jerr != nil {
			return jerr
		}
		return err
	}
	if err != nil {
		logger.Error("merge failed", logx.Err(err))
		return err
	}
	writeMergeSummary(out, cmd.ErrOrStderr(), res)
	return nil
}

func newMergeService(runner media.Runner, statuses []tools.Status, cfg config.Config, logger *slog.Logger) *render.Service {
	ff, prober := mediaTools(runner, statuses, cfg, logger)
	enc := cfg.Encoding.Resolve()
	return render.NewService(ff, prober, newGenerator(runner, statuses, cfg, ff, prober, logger), enc, logger)
}

func newGenerator(runner media.Runner, statuses []tools.Status, cfg config.Config, ff *media.FFmpeg, prober *media.Prober, logger *slog.Logger) transition.Generator {
	if cfg.Transitions.Backend == config.BackendXfade {
		x := transition.NewXfade(ff, prober, cfg.Encoding.Resolve())
		x.NumFrames = cfg.Transitions.NumFrames
		return x
	}
	interpreter := toolPath(statuses, tools.Interpreter, cfg.Transitions.Interpreter)
	s := transition.NewScript(runner, interpreter, cfg.Transitions.Script, logger)
	s.NumFrames = cfg.Transitions.NumFrames
	s.MaxBrightness = cfg.Transitions.MaxBrightness
	s.Timeout = cfg.Transitions.Timeout()
	return s
}

func writeMergeSummary(out, errOut io.Writer, res render.Result) {
	if res.Skipped() {
		fmt.Fprintf(out, "output up to date: %s (use --force to merge again)\n", res.Output)
		return
	}

	size := "unknown size"
	if info, err := os.Stat(res.Output); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	fmt.Fprintf(out, "merged %d segment(s) into %s (%s, %s)\n",
		len(res.Tracks), res.Output, size, res.Elapsed.Round(100*time.Millisecond))
	fmt.Fprintf(out, "seed: %d\n", res.Seed)
	for _, w := range res.Warnings {
		fmt.Fprintf(errOut, "cleanup warning: %v\n", w)
	}
}

type mergeJSONSegment struct {
	Seq           int       `json:"seq"`
	Start         float64   `json:"start"`
	End           float64   `json:"end"`
	Stock         int       `json:"stock"`
	TrackStart    float64   `json:"track_start"`
	TrackDuration float64   `json:"track_duration"`
	Effects       [2]string `json:"effects"`
}

type mergeJSONResult struct {
	Output    string             `json:"output"`
	Skipped   bool               `json:"skipped"`
	Reason    string             `json:"reason,omitempty"`
	Seed      int64              `json:"seed,omitempty"`
	SizeBytes int64              `json:"size_bytes,omitempty"`
	ElapsedMS int64              `json:"elapsed_ms"`
	Segments  []mergeJSONSegment `json:"segments"`
	Warnings  []string           `json:"warnings,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func writeMergeJSON(cmd *cobra.Command, res render.Result, runErr error) error {
	payload := mergeJSONResult{
		Output:    res.Output,
		Skipped:   res.Skipped(),
		Reason:    res.Decision.Reason,
		Seed:      res.Seed,
		ElapsedMS: res.Elapsed.Milliseconds(),
		Segments:  make([]mergeJSONSegment, 0, len(res.Tracks)),
		Error:     errorString(runErr),
	}
	if runErr == nil && !payload.Skipped {
		if info, err := os.Stat(res.Output); err == nil {
			payload.SizeBytes = info.Size()
		}
	}
	for _, t := range res.Tracks {
		payload.Segments = append(payload.Segments, mergeJSONSegment{
			Seq:           t.Window.Seq,
			Start:         t.Window.Start,
			End:           t.Window.End,
			Stock:         t.Window.StockIndex,
			TrackStart:    t.Start,
			TrackDuration: t.Duration,
			Effects:       t.Effects,
		})
	}
	for _, w := range res.Warnings {
		payload.Warnings = append(payload.Warnings, w.Error())
	}
	return writeJSON(cmd, payload)
}
