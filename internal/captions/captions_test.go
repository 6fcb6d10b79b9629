package captions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"stockmerge/internal/faults"
	"stockmerge/internal/media"
)

func TestGroupWordsBySecond(t *testing.T) {
	words := []Word{
		{Text: " so ", Start: 0.2},
		{Text: "here", Start: 0.9},
		{Text: "we", Start: 2.0},
		{Text: "", Start: 2.1},
		{Text: "go", Start: 2.99},
		{Text: "again", Start: 1.5},
	}
	got := GroupWordsBySecond(words)
	want := []Group{
		{Second: 0, Text: "so here"},
		{Second: 1, Text: "again"},
		{Second: 2, Text: "we go"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GroupWordsBySecond = %+v; want %+v", got, want)
	}
}

func TestBuildCues(t *testing.T) {
	groups := []Group{{Second: 1, Text: "a"}, {Second: 4, Text: "b"}, {Second: 5, Text: "c"}}

	cues := BuildCues(groups, 9.5)
	want := []Cue{{1, 4, "a"}, {4, 5, "b"}, {5, 9.5, "c"}}
	if !reflect.DeepEqual(cues, want) {
		t.Fatalf("BuildCues = %+v; want %+v", cues, want)
	}

	open := BuildCues(groups[2:], 0)
	if open[0].End != 6 {
		t.Fatalf("last cue without duration should last 1s, got %+v", open[0])
	}
}

func TestMarshalGroupedNumericOrder(t *testing.T) {
	data, err := MarshalGrouped([]Group{{Second: 10, Text: "ten"}, {Second: 9, Text: `nine "quoted"`}})
	if err != nil {
		t.Fatalf("MarshalGrouped error: %v", err)
	}
	text := string(data)
	if strings.Index(text, `"9"`) > strings.Index(text, `"10"`) {
		t.Fatalf("keys not in numeric order:\n%s", text)
	}

	groups, err := UnmarshalGrouped(data)
	if err != nil {
		t.Fatalf("UnmarshalGrouped error: %v", err)
	}
	if len(groups) != 2 || groups[0].Text != `nine "quoted"` || groups[1].Second != 10 {
		t.Fatalf("unexpected groups %+v", groups)
	}

	empty, err := MarshalGrouped(nil)
	if err != nil || strings.TrimSpace(string(empty)) != "{}" {
		t.Fatalf("empty encoding = %q (%v)", empty, err)
	}
}

func TestLoadWordsShapes(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"array.json":    `[{"word":"hi","start":0.5}]`,
		"verbose.json":  `{"text":"hi","words":[{"word":"hi","start":0.5,"end":0.7}]}`,
		"segments.json": `{"segments":[{"words":[{"word":"hi","start":0.5}]}]}`,
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		words, err := LoadWords(path)
		if err != nil {
			t.Fatalf("%s: LoadWords error: %v", name, err)
		}
		if len(words) != 1 || words[0].Text != "hi" || words[0].Start != 0.5 {
			t.Fatalf("%s: unexpected words %+v", name, words)
		}
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"text":"no timings"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWords(bad); err == nil {
		t.Fatal("expected error for transcript without words")
	}
}

func TestFilter(t *testing.T) {
	style := DefaultStyle()
	style.Transform = "upper"
	got := Filter([]Cue{{Start: 1, End: 2.5, Text: "it's 100%: yes, no"}}, style)

	for _, want := range []string{
		`text='IT'\\\''S 100\%\: YES\, NO'`,
		"fontcolor=yellow",
		"shadowcolor=black",
		"x=(w-text_w)/2",
		"y=h*0.55",
		`enable='between(t\,1\,2.5)'`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("filter missing %q:\n%s", want, got)
		}
	}

	plain := Filter([]Cue{{Start: 0, End: 1, Text: "don't stop"}}, DefaultStyle())
	if !strings.Contains(plain, `text='don'\\\''t stop'`) {
		t.Errorf("apostrophe not escaped for both parse levels:\n%s", plain)
	}
	if strings.Contains(plain, "don''t") {
		t.Errorf("doubled quote would drop the apostrophe:\n%s", plain)
	}

	if Filter(nil, style) != "null" {
		t.Fatal("empty cue list should produce null filter")
	}
	if Filter([]Cue{{Start: 3, End: 3, Text: "x"}}, style) != "null" {
		t.Fatal("zero-length cue should be skipped")
	}
}

func TestStyleApply(t *testing.T) {
	tests := map[string]string{
		"":      "hello World",
		"upper": "HELLO WORLD",
		"lower": "hello world",
		"title": "Hello World",
	}
	for transform, want := range tests {
		s := Style{Transform: transform}
		if got := s.Apply("hello World"); got != want {
			t.Errorf("Apply(%q) = %q; want %q", transform, got, want)
		}
	}
}

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	audio bool
}

func (f *fakeRunner) Run(ctx context.Context, command string, args []string, opts media.RunOptions) (media.RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{command}, args...))
	f.mu.Unlock()

	target := args[len(args)-1]
	switch command {
	case "ffprobe":
		streams := `{"codec_type":"video","codec_name":"h264","width":1280,"height":720,"r_frame_rate":"25/1"}`
		if f.audio {
			streams += `,{"codec_type":"audio","codec_name":"aac"}`
		}
		return media.RunResult{Stdout: []byte(fmt.Sprintf(`{"streams":[%s],"format":{"duration":"6.4"}}`, streams))}, nil
	case "ffmpeg":
		return media.RunResult{}, os.WriteFile(target, []byte("video"), 0o644)
	}
	return media.RunResult{}, errors.New("unexpected command")
}

type fakeTranscriber struct {
	audio string
	words []Word
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) ([]Word, error) {
	f.audio = audioPath
	if _, err := os.Stat(audioPath); err != nil {
		return nil, err
	}
	return f.words, nil
}

func newCaptioner(runner media.Runner, tr Transcriber) *Captioner {
	return &Captioner{
		FFmpeg:      media.NewFFmpeg(runner, "ffmpeg", nil),
		Prober:      media.NewProber(runner, "ffprobe"),
		Transcriber: tr,
		Encoding:    media.DefaultEncoding(),
		Style:       DefaultStyle(),
	}
}

func TestCaptionerTranscribesGroupsAndBurns(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{audio: true}
	tr := &fakeTranscriber{words: []Word{{Text: "hello", Start: 0.1}, {Text: "there", Start: 0.6}, {Text: "friend", Start: 3.2}}}
	c := newCaptioner(runner, tr)

	res, err := c.Run(context.Background(), Request{
		Input:   filepath.Join(dir, "in.mp4"),
		Output:  filepath.Join(dir, "out", "captioned.mp4"),
		WorkDir: filepath.Join(dir, "work"),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if res.Words != 3 || len(res.Cues) != 2 || res.Cues[1].End != 6.4 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.GroupedPath != filepath.Join(dir, "out", GroupedFileName) {
		t.Fatalf("grouped path = %s", res.GroupedPath)
	}
	data, err := os.ReadFile(res.GroupedPath)
	if err != nil || !strings.Contains(string(data), `"0": {"words":"hello there"}`) {
		t.Fatalf("grouped file = %s (%v)", data, err)
	}
	if !strings.HasSuffix(tr.audio, ".mp3") {
		t.Fatalf("transcriber got %s", tr.audio)
	}

	last := runner.calls[len(runner.calls)-1]
	joined := strings.Join(last, " ")
	if !strings.Contains(joined, "-c:a copy") || !strings.Contains(joined, "0:a?") {
		t.Fatalf("audio not passed through: %s", joined)
	}
	if entries, _ := os.ReadDir(filepath.Join(dir, "work")); len(entries) != 0 {
		t.Fatalf("work dir not cleaned: %v", entries)
	}
}

func TestCaptionerUsesWordsFile(t *testing.T) {
	dir := t.TempDir()
	words := filepath.Join(dir, "words.json")
	if err := os.WriteFile(words, []byte(`[{"word":"hi","start":1.2}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	c := newCaptioner(&fakeRunner{}, nil)
	res, err := c.Run(context.Background(), Request{
		Input:       filepath.Join(dir, "in.mp4"),
		Output:      filepath.Join(dir, "out.mp4"),
		WordsPath:   words,
		GroupedPath: filepath.Join(dir, "g.json"),
		WorkDir:     dir,
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(res.Cues) != 1 || res.Cues[0].Start != 1 {
		t.Fatalf("unexpected cues %+v", res.Cues)
	}
}

func TestCaptionerRequiresAudioToTranscribe(t *testing.T) {
	dir := t.TempDir()
	c := newCaptioner(&fakeRunner{audio: false}, &fakeTranscriber{})
	_, err := c.Run(context.Background(), Request{
		Input:   filepath.Join(dir, "in.mp4"),
		Output:  filepath.Join(dir, "out.mp4"),
		WorkDir: dir,
	})
	var merr *faults.MediaOpenError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MediaOpenError, got %v", err)
	}
}

func TestCaptionerNeedsWordsSource(t *testing.T) {
	c := newCaptioner(&fakeRunner{}, nil)
	_, err := c.Run(context.Background(), Request{Input: "in.mp4", Output: "out.mp4"})
	var cerr *faults.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
