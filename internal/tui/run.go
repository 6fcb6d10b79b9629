package tui

import (
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// RunWithWork creates a bubbletea program, launches workFn in a goroutine,
// and blocks until both the program and workFn have finished. The error
// returned by workFn is reported through ErrorMsg and returned.
func RunWithWork(out io.Writer, model ProgressModel, workFn func(send func(tea.Msg)) error) error {
	p := tea.NewProgram(model, tea.WithOutput(out))

	done := make(chan error, 1)
	go func() {
		// Let bubbletea start its event loop and render the initial frame.
		time.Sleep(50 * time.Millisecond)

		err := workFn(p.Send)
		if err != nil {
			p.Send(ErrorMsg{Err: err})
		} else {
			p.Send(WorkDoneMsg{})
		}
		done <- err
	}()

	finalModel, runErr := p.Run()
	// The model may quit early on ctrl+c; its cancel hook stops the work,
	// which still has to release its resources before we return.
	workErr := <-done
	if runErr != nil {
		return runErr
	}
	if m, ok := finalModel.(ProgressModel); ok && m.Err() != nil {
		return m.Err()
	}
	return workErr
}
