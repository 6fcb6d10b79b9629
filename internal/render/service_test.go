package render

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"stockmerge/internal/faults"
	"stockmerge/internal/media"
	"stockmerge/internal/render/state"
	"stockmerge/internal/timeline"
)

type testEnv struct {
	dir    string
	media  *fakeMedia
	gen    *fakeGenerator
	svc    *Service
	job    Job
	report *recordingReporter
}

type recordingReporter struct {
	mu        sync.Mutex
	started   []int
	completed []SegmentResult
}

func (r *recordingReporter) Start(seg Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, seg.Window.Seq)
}

func (r *recordingReporter) Complete(res SegmentResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, res)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	primary := filepath.Join(dir, "main.mp4")
	stock0 := filepath.Join(dir, "stock0.mp4")
	stock1 := filepath.Join(dir, "stock1.mp4")
	for _, p := range []string{primary, stock0, stock1} {
		if err := os.WriteFile(p, []byte("source"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	fm := newFakeMedia()
	fm.probes[primary] = probeJSON(1920, 1080, "30000/1001", 60, true)
	fm.probes[stock0] = probeJSON(2560, 1080, "25/1", 30, false)
	fm.probes[stock1] = probeJSON(1080, 1920, "30/1", 12, true)

	gen := &fakeGenerator{}
	svc := NewService(media.NewFFmpeg(fm, "", nil), media.NewProber(fm, ""), gen, media.DefaultEncoding(), nil)
	report := &recordingReporter{}
	svc.Reporter = report

	return &testEnv{
		dir:    dir,
		media:  fm,
		gen:    gen,
		svc:    svc,
		report: report,
		job: Job{
			Primary: primary,
			Stocks:  []string{stock0, stock1},
			Output:  filepath.Join(dir, "out", "final.mp4"),
			Requests: []timeline.Request{
				{Start: 30, End: 40, StockIndex: 1},
				{Start: 14, End: 21, StockIndex: 0},
			},
			Timing:  timeline.DefaultTiming(),
			Backend: "script",
			Effects: []string{"zoom_in", "translation"},
			Seed:    42,
			WorkDir: filepath.Join(dir, "work"),
		},
	}
}

func findCall(calls [][]string, needle string) []string {
	for _, c := range calls {
		if strings.Contains(strings.Join(c, " "), needle) {
			return c
		}
	}
	return nil
}

func TestRunProducesOutputAndCleansUp(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.Run(context.Background(), env.job)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if _, err := os.Stat(env.job.Output); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if res.RunDir == "" {
		t.Fatal("run dir not reported")
	}
	if _, err := os.Stat(res.RunDir); !os.IsNotExist(err) {
		t.Fatalf("run dir still exists: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected cleanup warnings: %v", res.Warnings)
	}

	if len(res.Tracks) != 2 {
		t.Fatalf("got %d tracks; want 2", len(res.Tracks))
	}
	if res.Tracks[0].Start != 13.5 || res.Tracks[1].Start != 29.5 {
		t.Fatalf("tracks not anchored at transition start: %v, %v", res.Tracks[0].Start, res.Tracks[1].Start)
	}
	for _, track := range res.Tracks {
		roles := make([]string, len(track.Clips))
		for i, c := range track.Clips {
			roles[i] = c.Role
		}
		want := "transition_in_1,transition_in_2,stock,transition_out_1,transition_out_2"
		if strings.Join(roles, ",") != want {
			t.Fatalf("clip order %v", roles)
		}
	}

	if len(res.Effects) != 4 || len(env.gen.calls) != 4 {
		t.Fatalf("expected four transitions, got effects=%v calls=%v", res.Effects, env.gen.calls)
	}
	if len(env.report.started) != 2 || len(env.report.completed) != 2 {
		t.Fatalf("reporter saw %d starts and %d completions", len(env.report.started), len(env.report.completed))
	}

	compose := findCall(env.media.ffmpegCalls(), "[vout]")
	if compose == nil {
		t.Fatal("no compose invocation")
	}
	joined := strings.Join(compose, " ")
	for _, want := range []string{
		"-t 60",
		"-r 30000/1001",
		"-map 0:a?",
		"setpts=PTS-STARTPTS+13.5/TB",
		"setpts=PTS-STARTPTS+29.5/TB",
		"eof_action=pass",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("compose args missing %q:\n%s", want, joined)
		}
	}
}

func TestRunPlannedReadsInputsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pre, err := env.svc.Preflight(ctx, env.job)
	if err != nil {
		t.Fatalf("Preflight error: %v", err)
	}
	res, err := env.svc.RunPlanned(ctx, env.job, pre)
	if err != nil {
		t.Fatalf("RunPlanned error: %v", err)
	}
	if len(res.Tracks) != 2 || len(res.Windows) != 2 {
		t.Fatalf("got %d tracks over %d windows", len(res.Tracks), len(res.Windows))
	}

	for _, input := range append([]string{env.job.Primary}, env.job.Stocks...) {
		if n := env.media.inspections(input); n != 1 {
			t.Errorf("%s inspected %d times; want 1", filepath.Base(input), n)
		}
	}
}

func TestRunBridgeAndStockExtraction(t *testing.T) {
	env := newTestEnv(t)
	env.job.Requests = env.job.Requests[1:]

	if _, err := env.svc.Run(context.Background(), env.job); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	calls := env.media.ffmpegCalls()

	bridgeIn := findCall(calls, "-ss 13.5")
	if bridgeIn == nil || !strings.Contains(strings.Join(bridgeIn, " "), "-t 0.24") {
		t.Fatalf("entry bridge not extracted from 13.5 for 0.24s: %v", bridgeIn)
	}
	bridgeOut := findCall(calls, "-ss 21 ")
	if bridgeOut == nil || !strings.Contains(strings.Join(bridgeOut, " "), "-t 0.26") {
		t.Fatalf("exit bridge not extracted from 21 for 0.26s: %v", bridgeOut)
	}
	stock := findCall(calls, "stock0.mp4")
	if stock == nil {
		t.Fatal("stock body not rendered")
	}
	joined := strings.Join(stock, " ")
	if !strings.Contains(joined, "-t 7") || !strings.Contains(joined, "crop=w=1920:h=1080:x=320:y=0") || !strings.Contains(joined, "fps=30") {
		t.Fatalf("unexpected stock args: %s", joined)
	}
}

func TestRunTransitionFailureReleasesRunDir(t *testing.T) {
	env := newTestEnv(t)
	env.gen.fail = true

	res, err := env.svc.Run(context.Background(), env.job)
	var terr *faults.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	var serr *faults.SegmentError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SegmentError wrapper, got %v", err)
	}
	if res.RunDir == "" {
		t.Fatal("run dir not reported")
	}
	if _, statErr := os.Stat(res.RunDir); !os.IsNotExist(statErr) {
		t.Fatalf("run dir survived failure: %v", statErr)
	}
	if _, statErr := os.Stat(env.job.Output); !os.IsNotExist(statErr) {
		t.Fatal("partial output published")
	}
	if findCall(env.media.ffmpegCalls(), "[vout]") != nil {
		t.Fatal("compose ran after failure")
	}
}

func TestRunComposeFailureLeavesNoOutput(t *testing.T) {
	env := newTestEnv(t)
	env.media.failOn = "[vout]"
	env.job.LogsDir = filepath.Join(env.dir, "logs")

	res, err := env.svc.Run(context.Background(), env.job)
	if err == nil || !strings.Contains(err.Error(), "Conversion failed") {
		t.Fatalf("expected compose failure, got %v", err)
	}
	if _, statErr := os.Stat(env.job.Output); !os.IsNotExist(statErr) {
		t.Fatal("output exists after failed compose")
	}
	if _, statErr := os.Stat(res.RunDir); !os.IsNotExist(statErr) {
		t.Fatal("run dir survived failure")
	}
	kept, _ := filepath.Glob(filepath.Join(env.job.LogsDir, "compose-*.log"))
	if len(kept) != 1 {
		t.Fatalf("expected preserved compose log, got %v", kept)
	}
}

func TestRunConfigurationErrorsBeforeMediaWork(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Job)
	}{
		{"overlap", func(j *Job) { j.Requests = append(j.Requests, timeline.Request{Start: 20, End: 25}) }},
		{"past end", func(j *Job) { j.Requests = []timeline.Request{{Start: 50, End: 59.9}} }},
		{"stock index", func(j *Job) { j.Requests = []timeline.Request{{Start: 5, End: 6, StockIndex: 5}} }},
		{"short stock", func(j *Job) { j.Requests = []timeline.Request{{Start: 5, End: 20, StockIndex: 1}} }},
		{"no effects", func(j *Job) { j.Effects = nil }},
		{"output is primary", func(j *Job) { j.Output = j.Primary }},
		{"NaN end", func(j *Job) { j.Requests = []timeline.Request{{Start: 14, End: math.NaN()}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tt.mutate(&env.job)

			res, err := env.svc.Run(context.Background(), env.job)
			var cerr *faults.ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if res.RunDir != "" {
				t.Fatal("run dir created for invalid job")
			}
			if len(env.media.ffmpegCalls()) != 0 {
				t.Fatal("ffmpeg ran for invalid job")
			}
		})
	}
}

func TestRunMediaOpenError(t *testing.T) {
	env := newTestEnv(t)
	delete(env.media.probes, env.job.Stocks[1])
	env.job.Stocks[1] = filepath.Join(env.dir, "missing.mp4")

	_, err := env.svc.Run(context.Background(), env.job)
	var merr *faults.MediaOpenError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MediaOpenError, got %v", err)
	}
	if merr.Role != "stock[1]" {
		t.Errorf("role = %q", merr.Role)
	}
}

func TestRunShortStockFreezeAndLoop(t *testing.T) {
	for _, policy := range []StockPolicy{StockFreeze, StockLoop} {
		t.Run(string(policy), func(t *testing.T) {
			env := newTestEnv(t)
			env.job.Policy = policy
			env.job.Requests = []timeline.Request{{Start: 5, End: 20, StockIndex: 1}}

			if _, err := env.svc.Run(context.Background(), env.job); err != nil {
				t.Fatalf("Run error: %v", err)
			}
			stock := strings.Join(findCall(env.media.ffmpegCalls(), "stock1.mp4"), " ")
			if !strings.Contains(stock, "-t 15") {
				t.Fatalf("stock body should fill the interval: %s", stock)
			}
			switch policy {
			case StockFreeze:
				if !strings.Contains(stock, "tpad=stop_mode=clone:stop_duration=3") {
					t.Fatalf("freeze not applied: %s", stock)
				}
			case StockLoop:
				if !strings.Contains(stock, "-stream_loop -1") {
					t.Fatalf("loop not applied: %s", stock)
				}
			}
		})
	}
}

func TestRunEffectsIndependentOfConcurrency(t *testing.T) {
	run := func(concurrency int) []string {
		env := newTestEnv(t)
		env.job.Concurrency = concurrency
		env.job.Requests = []timeline.Request{
			{Start: 5, End: 8, StockIndex: 0},
			{Start: 14, End: 21, StockIndex: 0},
			{Start: 30, End: 40, StockIndex: 1},
		}
		env.job.Effects = []string{"zoom_in", "translation", "fade", "wipeleft"}
		res, err := env.svc.Run(context.Background(), env.job)
		if err != nil {
			t.Fatalf("Run(concurrency=%d) error: %v", concurrency, err)
		}
		var got []string
		for _, track := range res.Tracks {
			got = append(got, track.Effects[0], track.Effects[1])
		}
		return got
	}

	serial, parallel := run(1), run(3)
	if strings.Join(serial, ",") != strings.Join(parallel, ",") {
		t.Fatalf("effects differ:\nserial   %v\nparallel %v", serial, parallel)
	}
}

func TestRunSkipsUpToDateOutput(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Run(context.Background(), env.job); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := os.Stat(state.PathFor(env.job.Output)); err != nil {
		t.Fatalf("state file missing: %v", err)
	}

	calls := len(env.media.ffmpegCalls())
	res, err := env.svc.Run(context.Background(), env.job)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !res.Skipped() || len(env.media.ffmpegCalls()) != calls {
		t.Fatalf("expected skip, decision=%+v", res.Decision)
	}

	env.job.Force = true
	res, err = env.svc.Run(context.Background(), env.job)
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if res.Skipped() || res.Decision.Reason != state.ReasonForced {
		t.Fatalf("force did not re-render: %+v", res.Decision)
	}
}

func TestRunWithoutRequestsReencodesPrimary(t *testing.T) {
	env := newTestEnv(t)
	env.job.Requests = nil

	res, err := env.svc.Run(context.Background(), env.job)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(res.Tracks) != 0 {
		t.Fatalf("unexpected tracks %v", res.Tracks)
	}
	compose := strings.Join(findCall(env.media.ffmpegCalls(), "[vout]"), " ")
	if !strings.Contains(compose, "[0:v]null[vout]") {
		t.Fatalf("unexpected compose graph: %s", compose)
	}
}
