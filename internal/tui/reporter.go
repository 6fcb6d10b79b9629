package tui

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"stockmerge/internal/media"
	"stockmerge/internal/render"
	"stockmerge/internal/timeline"
)

// SegmentColumns is the merge progress table layout.
var SegmentColumns = []Column{
	{Header: "SEQ", Width: 3},
	{Header: "WINDOW", Width: 17},
	{Header: "STOCK", Width: 20},
	{Header: "EFFECTS", Width: 22},
	{Header: "STATUS", Width: 8},
	{Header: "ELAPSED", Width: 7},
	{Header: "DETAIL", Width: 30},
}

// SegmentKey identifies a window's row.
func SegmentKey(w timeline.Window) string {
	return "seg:" + strconv.Itoa(w.Seq)
}

// SegmentRow returns the initial row values for a window.
func SegmentRow(w timeline.Window, stockPath string, effects [2]string) []string {
	return []string{
		fmt.Sprintf("%02d", w.Seq),
		media.FormatSeconds(w.Start) + "s-" + media.FormatSeconds(w.End) + "s",
		NonEmptyOrDash(filepath.Base(stockPath)),
		effectsText(effects),
		StatusPending,
		"-",
		"",
	}
}

func effectsText(effects [2]string) string {
	if effects[0] == "" && effects[1] == "" {
		return "-"
	}
	return effects[0] + " / " + effects[1]
}

// SegmentReporter forwards segment events to a bubbletea program. Once every
// segment has completed the footer switches to the compose phase.
type SegmentReporter struct {
	send  func(tea.Msg)
	total int

	mu       sync.Mutex
	finished int
}

// NewSegmentReporter returns a reporter for total segments.
func NewSegmentReporter(send func(tea.Msg), total int) *SegmentReporter {
	return &SegmentReporter{send: send, total: total}
}

// Start implements render.ProgressReporter.
func (r *SegmentReporter) Start(seg render.Segment) {
	r.send(RowUpdateMsg{
		Key: SegmentKey(seg.Window),
		Fields: map[string]string{
			"STATUS":  StatusBuilding,
			"EFFECTS": effectsText(seg.Effects),
			"DETAIL":  fmt.Sprintf("%dx%d stock", seg.Stock.Size.Width, seg.Stock.Size.Height),
		},
	})
}

// Complete implements render.ProgressReporter.
func (r *SegmentReporter) Complete(res render.SegmentResult) {
	fields := map[string]string{"STATUS": StatusBuilt, "DETAIL": media.FormatSeconds(res.Track.Duration) + "s track"}
	if res.Err != nil {
		fields["STATUS"] = StatusFailed
		fields["DETAIL"] = res.Err.Error()
	}
	r.send(RowUpdateMsg{Key: SegmentKey(res.Segment.Window), Fields: fields})

	r.mu.Lock()
	r.finished++
	done := r.finished == r.total
	r.mu.Unlock()
	if done {
		r.send(PhaseMsg{Text: "Composing final video"})
	}
}

// PlainReporter prints one line per segment event.
type PlainReporter struct {
	mu    sync.Mutex
	w     io.Writer
	total int
}

// NewPlainReporter returns a line-oriented reporter for total segments.
func NewPlainReporter(w io.Writer, total int) *PlainReporter {
	return &PlainReporter{w: w, total: total}
}

// Start implements render.ProgressReporter.
func (r *PlainReporter) Start(seg render.Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "[%d/%d] building %s (%s)\n", seg.Window.Seq, r.total, seg.Window.Request, effectsText(seg.Effects))
}

// Complete implements render.ProgressReporter.
func (r *PlainReporter) Complete(res render.SegmentResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.Err != nil {
		fmt.Fprintf(r.w, "[%d/%d] failed: %v\n", res.Segment.Window.Seq, r.total, res.Err)
		return
	}
	fmt.Fprintf(r.w, "[%d/%d] built %ss track at %ss\n",
		res.Segment.Window.Seq, r.total,
		media.FormatSeconds(res.Track.Duration), media.FormatSeconds(res.Track.Start))
}
