package state

import "os"

const (
	ActionRender = "render"
	ActionSkip   = "skip"

	ReasonForced        = "forced"
	ReasonNew           = "no previous render"
	ReasonRandomSeed    = "random seed"
	ReasonInputChanged  = "input changed"
	ReasonOutputMissing = "output missing"
	ReasonUpToDate      = "up to date"
)

// Decision describes whether a merge must run.
type Decision struct {
	Action string
	Reason string
}

// Skip reports whether the merge can be skipped.
func (d Decision) Skip() bool {
	return d.Action == ActionSkip
}

// Detect compares the current input hash against prior state for output.
// A job with a clock-derived seed never matches, since its effects differ on
// every run.
func Detect(prior *JobState, inputHash, output string, seed int64, force bool) Decision {
	switch {
	case force:
		return Decision{Action: ActionRender, Reason: ReasonForced}
	case seed == 0:
		return Decision{Action: ActionRender, Reason: ReasonRandomSeed}
	case prior == nil:
		return Decision{Action: ActionRender, Reason: ReasonNew}
	case prior.InputHash != inputHash:
		return Decision{Action: ActionRender, Reason: ReasonInputChanged}
	}

	if _, err := os.Stat(output); os.IsNotExist(err) {
		return Decision{Action: ActionRender, Reason: ReasonOutputMissing}
	}
	return Decision{Action: ActionSkip, Reason: ReasonUpToDate}
}
