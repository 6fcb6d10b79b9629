// Package geometry maps clips of arbitrary aspect ratio onto a fixed frame.
package geometry

import (
	"fmt"
	"math"
	"strings"
)

// Size is a frame size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// FitTransform scales a source to NewWidth x NewHeight and places its top-left
// corner at (OffsetX, OffsetY) inside the target frame. Offsets are negative
// when the scaled clip overflows the frame; the overflow is cropped.
type FitTransform struct {
	NewWidth  int `json:"new_width"`
	NewHeight int `json:"new_height"`
	OffsetX   int `json:"offset_x"`
	OffsetY   int `json:"offset_y"`
}

// Fit computes the aspect-preserving resize that covers target and centers the
// result. A source relatively wider than the target is pinned to the target
// height; otherwise it is pinned to the target width.
func Fit(source, target Size) FitTransform {
	if !source.Valid() || !target.Valid() {
		return FitTransform{NewWidth: target.Width, NewHeight: target.Height}
	}

	targetAspect := float64(target.Width) / float64(target.Height)
	sourceAspect := float64(source.Width) / float64(source.Height)

	var newWidth, newHeight int
	if sourceAspect > targetAspect {
		newHeight = target.Height
		newWidth = int(math.Round(float64(newHeight) * sourceAspect))
	} else {
		newWidth = target.Width
		newHeight = int(math.Round(float64(newWidth) / sourceAspect))
	}

	return FitTransform{
		NewWidth:  newWidth,
		NewHeight: newHeight,
		OffsetX:   floorDiv(target.Width-newWidth, 2),
		OffsetY:   floorDiv(target.Height-newHeight, 2),
	}
}

// Identity reports whether the transform leaves a target-sized clip untouched.
func (f FitTransform) Identity(target Size) bool {
	return f.NewWidth == target.Width && f.NewHeight == target.Height && f.OffsetX == 0 && f.OffsetY == 0
}

// Filter renders the transform as an ffmpeg filter chain whose output is
// exactly target-sized: scale, pad any short dimension, crop any overflow.
func (f FitTransform) Filter(target Size) string {
	filters := []string{
		fmt.Sprintf("scale=w=%d:h=%d:flags=lanczos", even(f.NewWidth), even(f.NewHeight)),
		"setsar=1",
	}

	w, h := even(f.NewWidth), even(f.NewHeight)
	padX, padY := max(f.OffsetX, 0), max(f.OffsetY, 0)
	if w < target.Width || h < target.Height {
		pw, ph := max(w, target.Width), max(h, target.Height)
		filters = append(filters, fmt.Sprintf("pad=w=%d:h=%d:x=%d:y=%d:color=black", pw, ph, padX, padY))
		w, h = pw, ph
	}

	cropX, cropY := max(-f.OffsetX, 0), max(-f.OffsetY, 0)
	if w > target.Width || h > target.Height {
		filters = append(filters, fmt.Sprintf("crop=w=%d:h=%d:x=%d:y=%d", target.Width, target.Height, cropX, cropY))
	}

	return strings.Join(filters, ",")
}

// ScaleFilter renders only the resize step, used when a clip is materialized at
// its fitted size and positioned later.
func (f FitTransform) ScaleFilter() string {
	return fmt.Sprintf("scale=w=%d:h=%d:flags=lanczos,setsar=1", even(f.NewWidth), even(f.NewHeight))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// even rounds up to the next even dimension; yuv420p rejects odd sizes.
func even(v int) int {
	if v%2 != 0 {
		return v + 1
	}
	return v
}
