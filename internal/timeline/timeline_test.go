package timeline

import (
	"errors"
	"math"
	"strings"
	"testing"

	"stockmerge/internal/faults"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDeriveWindow(t *testing.T) {
	w := Derive(Request{Start: 14, End: 21, StockIndex: 0}, DefaultTiming())

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"TransitionInStart", w.TransitionInStart, 13.5},
		{"MainSegmentInEnd", w.MainSegmentInEnd, 13.74},
		{"MainSegmentOutStart", w.MainSegmentOutStart, 21},
		{"MainSegmentOutEnd", w.MainSegmentOutEnd, 21.26},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s = %v; want %v", c.name, c.got, c.want)
		}
	}
}

func TestPlanSortsByStart(t *testing.T) {
	requests := []Request{
		{Start: 61, End: 71, StockIndex: 1},
		{Start: 14, End: 21, StockIndex: 0},
		{Start: 30, End: 40, StockIndex: 1},
	}

	windows, err := Plan(requests, 2, DefaultTiming())
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}

	wantStarts := []float64{14, 30, 61}
	if len(windows) != len(wantStarts) {
		t.Fatalf("got %d windows; want %d", len(windows), len(wantStarts))
	}
	for i, w := range windows {
		if w.Start != wantStarts[i] {
			t.Errorf("windows[%d].Start = %v; want %v", i, w.Start, wantStarts[i])
		}
		if w.Seq != i+1 {
			t.Errorf("windows[%d].Seq = %d; want %d", i, w.Seq, i+1)
		}
	}

	// Caller's slice is untouched.
	if requests[0].Start != 61 {
		t.Error("Plan mutated its input")
	}
}

func TestPlanRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantMsg string
	}{
		{"start equals end", Request{Start: 10, End: 10}, "must be before end"},
		{"start after end", Request{Start: 12, End: 10}, "must be before end"},
		{"negative start", Request{Start: -1, End: 10}, "negative"},
		{"start inside pre-roll", Request{Start: 0.2, End: 10}, "pre-roll"},
		{"stock index too large", Request{Start: 5, End: 10, StockIndex: 2}, "out of range"},
		{"stock index negative", Request{Start: 5, End: 10, StockIndex: -1}, "out of range"},
		{"NaN start", Request{Start: math.NaN(), End: 5}, "finite"},
		{"NaN end", Request{Start: 2, End: math.NaN()}, "finite"},
		{"infinite end", Request{Start: 2, End: math.Inf(1)}, "finite"},
		{"negative infinite start", Request{Start: math.Inf(-1), End: 5}, "finite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan([]Request{tt.req}, 2, DefaultTiming())
			var cerr *faults.ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestPlanRejectsOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		requests []Request
	}{
		{"intersecting", []Request{{Start: 10, End: 20}, {Start: 15, End: 25}}},
		{"touching", []Request{{Start: 10, End: 20}, {Start: 20, End: 25}}},
		{"bridge windows collide", []Request{{Start: 10, End: 20}, {Start: 20.5, End: 25}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.requests, 1, DefaultTiming())
			var cerr *faults.ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}

	if _, err := Plan([]Request{{Start: 10, End: 20}, {Start: 21, End: 25}}, 1, DefaultTiming()); err != nil {
		t.Fatalf("disjoint windows rejected: %v", err)
	}
}

func TestPlanRejectsBadTiming(t *testing.T) {
	_, err := Plan([]Request{{Start: 10, End: 20}}, 1, Timing{PreRoll: 0.2, Bridge: 0.3})
	if err == nil || !strings.Contains(err.Error(), "timing.bridge") {
		t.Fatalf("expected timing error, got %v", err)
	}

	_, err = Plan([]Request{{Start: 10, End: 20}}, 1, Timing{PreRoll: math.NaN(), Bridge: 0.26})
	if err == nil || !strings.Contains(err.Error(), "timing.pre_roll") {
		t.Fatalf("expected pre_roll error for NaN, got %v", err)
	}
}

func TestCheckBounds(t *testing.T) {
	windows, err := Plan([]Request{{Start: 10, End: 20}, {Start: 50, End: 59.9}}, 1, DefaultTiming())
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if err := CheckBounds(windows, 61); err != nil {
		t.Fatalf("unexpected bounds error: %v", err)
	}
	if err := CheckBounds(windows, 60); err == nil {
		t.Fatal("expected bounds error when exit bridge passes the end")
	}
	if err := CheckBounds(windows, math.NaN()); err == nil {
		t.Fatal("expected bounds error for an unknown primary duration")
	}
}
