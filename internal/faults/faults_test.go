package faults

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigurationErrorCollectsIssues(t *testing.T) {
	var cerr ConfigurationError
	if cerr.OrNil() != nil {
		t.Fatal("expected nil error without issues")
	}
	cerr.Add("overlays[0]", "start %v must be before end %v", 5.0, 4.0)
	cerr.Add("", "no stock videos configured")

	err := cerr.OrNil()
	if err == nil {
		t.Fatal("expected error with issues")
	}
	msg := err.Error()
	for _, want := range []string{"overlays[0]: start 5 must be before end 4", "no stock videos configured"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestSegmentErrorUnwrapsToCause(t *testing.T) {
	cause := &TransitionError{Effect: "zoom_in", From: "a.mp4", To: "b.mp4", Err: errors.New("exit status 1")}
	err := error(&SegmentError{Start: 14, End: 21.5, StockIndex: 0, Err: cause})

	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError in chain, got %v", err)
	}
	if terr.Effect != "zoom_in" {
		t.Errorf("effect: got %q", terr.Effect)
	}
	if !strings.Contains(err.Error(), "segment [14s, 21.5s] stock 0") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestCleanupWarningMessage(t *testing.T) {
	w := CleanupWarning{Path: "/tmp/x", Err: errors.New("busy")}
	if got := w.Error(); got != "cleanup /tmp/x: busy" {
		t.Errorf("got %q", got)
	}
}
