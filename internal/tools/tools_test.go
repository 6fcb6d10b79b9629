package tools

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"stockmerge/internal/media"
)

type versionRunner map[string]string

func (v versionRunner) Run(ctx context.Context, command string, args []string, opts media.RunOptions) (media.RunResult, error) {
	out, ok := v[command]
	if !ok {
		return media.RunResult{}, errors.New("exit status 1")
	}
	if strings.HasPrefix(out, "stderr:") {
		return media.RunResult{Stderr: []byte(strings.TrimPrefix(out, "stderr:"))}, nil
	}
	return media.RunResult{Stdout: []byte(out)}, nil
}

func stubLookPath(t *testing.T, found map[string]string) {
	t.Helper()
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if p, ok := found[name]; ok {
			return p, nil
		}
		return "", exec.ErrNotFound
	}
	t.Cleanup(func() { lookPath = orig })
}

func TestDetect(t *testing.T) {
	stubLookPath(t, map[string]string{
		"ffmpeg":  "/usr/bin/ffmpeg",
		"ffprobe": "/usr/bin/ffprobe",
	})
	runner := versionRunner{
		"/usr/bin/ffmpeg":  "ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023\nbuilt with gcc",
		"/usr/bin/ffprobe": "ffprobe version 4.2.7 Copyright",
	}

	defs := Definitions(Overrides{})
	statuses := Detect(context.Background(), runner, defs)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}

	ff := statuses[0]
	if !ff.Satisfied || ff.Version != "6.1.1" || ff.Path != "/usr/bin/ffmpeg" {
		t.Errorf("unexpected ffmpeg status %+v", ff)
	}
	probe := statuses[1]
	if probe.Satisfied || !strings.Contains(probe.Error, "below minimum") {
		t.Errorf("old ffprobe should be unsatisfied: %+v", probe)
	}
	interp := statuses[2]
	if interp.Satisfied || len(interp.Notes) == 0 {
		t.Errorf("missing interpreter should carry hints: %+v", interp)
	}

	err := Require(statuses, defs)
	if err == nil || !strings.Contains(err.Error(), "ffprobe") || strings.Contains(err.Error(), "interpreter") {
		t.Fatalf("Require = %v", err)
	}
	if err := Require(statuses, defs, FFmpeg); err != nil {
		t.Fatalf("Require(ffmpeg) = %v", err)
	}
	if err := Require(statuses, defs, Interpreter); err == nil {
		t.Fatal("explicitly required interpreter should fail")
	}
}

func TestDetectReadsStderrVersion(t *testing.T) {
	stubLookPath(t, map[string]string{"python": "/usr/bin/python"})
	runner := versionRunner{"/usr/bin/python": "stderr:Python 3.11.4"}
	defs := []ToolDefinition{{Name: Interpreter, Executable: "python", VersionSwitch: "--version", MinimumVersion: "3.8"}}

	s := Detect(context.Background(), runner, defs)[0]
	if !s.Satisfied || s.Version != "3.11.4" {
		t.Fatalf("unexpected status %+v", s)
	}
}

func TestDefinitionsOverrides(t *testing.T) {
	defs := Definitions(Overrides{FFmpeg: "/opt/ffmpeg/bin/ffmpeg", Interpreter: "python3.12"})
	if defs[0].Executable != "/opt/ffmpeg/bin/ffmpeg" || defs[2].Executable != "python3.12" {
		t.Fatalf("overrides not applied: %+v", defs)
	}
}

func TestMeetsMinimum(t *testing.T) {
	tests := []struct {
		version, minimum string
		want             bool
	}{
		{"6.0", "4.4", true},
		{"4.4", "4.4", true},
		{"4.3.9", "4.4", false},
		{"7", "6.1", true},
		{"", "4.4", false},
		{"1.0", "", true},
	}
	for _, tt := range tests {
		if got := meetsMinimum(tt.version, tt.minimum); got != tt.want {
			t.Errorf("meetsMinimum(%q, %q) = %v; want %v", tt.version, tt.minimum, got, tt.want)
		}
	}
}
