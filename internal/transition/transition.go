// Package transition produces the two-phase animated bridges between clips.
package transition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"stockmerge/internal/faults"
)

// Effect names understood by every backend.
const (
	EffectZoomIn      = "zoom_in"
	EffectTranslation = "translation"
)

// DefaultEffects is the effect pool used when none is configured.
var DefaultEffects = []string{EffectZoomIn, EffectTranslation}

// Defaults for the animation parameters.
const (
	DefaultNumFrames     = 7
	DefaultMaxBrightness = 1.5
	DefaultTimeout       = 2 * time.Minute
)

// Phases are the two halves of a transition. The first phase plays before the
// second; both are files owned by the caller's run directory.
type Phases struct {
	Phase1 string
	Phase2 string
}

// Generator blends the end of clipA into the start of clipB using effect and
// writes <prefix>_phase1.mp4 and <prefix>_phase2.mp4.
type Generator interface {
	Generate(ctx context.Context, clipA, clipB, effect, prefix string) (Phases, error)
}

// PhasePaths returns the files a generator is expected to write for prefix.
func PhasePaths(prefix, ext string) Phases {
	if ext == "" {
		ext = "mp4"
	}
	return Phases{
		Phase1: fmt.Sprintf("%s_phase1.%s", prefix, ext),
		Phase2: fmt.Sprintf("%s_phase2.%s", prefix, ext),
	}
}

// verify checks that both phase files exist and are non-empty.
func (p Phases) verify() error {
	for _, path := range []string{p.Phase1, p.Phase2} {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("expected output %s was not written", path)
			}
			return fmt.Errorf("stat output: %w", err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("output %s is empty", path)
		}
	}
	return nil
}

func transitionError(effect, from, to string, err error) error {
	return &faults.TransitionError{Effect: effect, From: from, To: to, Err: err}
}
