package overlayplan

import (
	"fmt"
	"strings"
)

// ValidationError is one problem with one overlay entry of a plan file.
type ValidationError struct {
	Overlay int    // 1-based entry position, header excluded
	Line    int    // source line; for YAML lists the item number
	Field   string // start, end, duration or stock
	Value   string // raw text that was rejected, empty when missing
	Message string
}

func (e ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Location())
	if e.Field != "" {
		b.WriteString(" " + e.Field)
		if e.Value != "" {
			fmt.Fprintf(&b, " %q", e.Value)
		}
	}
	b.WriteString(": " + e.Message)
	return b.String()
}

// Location names the entry, e.g. "overlay 2 (line 3)".
func (e ValidationError) Location() string {
	switch {
	case e.Overlay <= 0 && e.Line <= 0:
		return "overlay"
	case e.Overlay <= 0:
		return fmt.Sprintf("line %d", e.Line)
	case e.Line <= 0 || e.Line == e.Overlay:
		return fmt.Sprintf("overlay %d", e.Overlay)
	default:
		return fmt.Sprintf("overlay %d (line %d)", e.Overlay, e.Line)
	}
}

// ConfigField returns the job field path for the entry, with a 0-based index
// to match the overlays list, e.g. "overlays_file[1].start".
func (e ValidationError) ConfigField(prefix string) string {
	field := prefix
	if e.Overlay > 0 {
		field = fmt.Sprintf("%s[%d]", field, e.Overlay-1)
	}
	if e.Field != "" {
		field += "." + e.Field
	}
	return field
}

// ValidationErrors aggregates the problems of every rejected entry.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "overlay plan is invalid"
	}
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

// Issues returns a copy of the underlying validation errors.
func (errs ValidationErrors) Issues() []ValidationError {
	return append([]ValidationError(nil), errs...)
}
