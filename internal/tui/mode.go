package tui

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/mattn/go-isatty"
)

// ProgressEnv overrides progress detection for merge runs: "plain" or "off"
// force line output, "tui" skips the terminal checks.
const ProgressEnv = "STOCKMERGE_PROGRESS"

// OutputMode is how merge reports segment progress.
type OutputMode int

const (
	// ModeTUI renders the live segment table.
	ModeTUI OutputMode = iota
	// ModePlain prints one line per segment event.
	ModePlain
	// ModeJSON prints nothing until the run ends, then the result document.
	ModeJSON
)

func (m OutputMode) String() string {
	switch m {
	case ModeTUI:
		return "tui"
	case ModePlain:
		return "plain"
	case ModeJSON:
		return "json"
	default:
		return "unknown"
	}
}

// DetectMode picks the progress mode for a merge writing to out.
func DetectMode(out io.Writer, noProgress, jsonOutput bool) OutputMode {
	return detectMode(out, noProgress, jsonOutput, os.Getenv)
}

func detectMode(out io.Writer, noProgress, jsonOutput bool, getenv func(string) string) OutputMode {
	if jsonOutput {
		return ModeJSON
	}
	if noProgress {
		return ModePlain
	}
	switch strings.ToLower(strings.TrimSpace(getenv(ProgressEnv))) {
	case "plain", "off", "0", "false":
		return ModePlain
	case "tui":
		return ModeTUI
	}
	// Segment renders run for minutes; CI logs want one line per event.
	if getenv("CI") != "" {
		return ModePlain
	}
	file, ok := out.(*os.File)
	if !ok {
		return ModePlain
	}
	if !isatty.IsTerminal(file.Fd()) && !isatty.IsCygwinTerminal(file.Fd()) {
		return ModePlain
	}
	if runtime.GOOS != "windows" {
		term := getenv("TERM")
		if term == "" || strings.EqualFold(term, "dumb") {
			return ModePlain
		}
	}
	return ModeTUI
}
