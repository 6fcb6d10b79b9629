package captions

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"stockmerge/internal/media"
)

// Style controls how captions are drawn.
type Style struct {
	FontFile    string
	FontSize    int
	Color       string
	ShadowColor string
	// YRatio places the top of the text at this fraction of the frame height.
	YRatio float64
	// Transform is one of "", "upper", "lower" or "title".
	Transform string
}

// DefaultStyle is yellow text with a black shadow at 55% of the height.
func DefaultStyle() Style {
	return Style{
		FontSize:    42,
		Color:       "yellow",
		ShadowColor: "black",
		YRatio:      0.55,
	}
}

// Apply returns text with the style's case transform applied.
func (s Style) Apply(text string) string {
	switch strings.ToLower(strings.TrimSpace(s.Transform)) {
	case "upper":
		return cases.Upper(language.Und).String(text)
	case "lower":
		return cases.Lower(language.Und).String(text)
	case "title":
		return cases.Title(language.Und).String(text)
	default:
		return text
	}
}

// Filter chains one drawtext per cue. It returns "null" when there is
// nothing to draw so the graph stays valid.
func Filter(cues []Cue, style Style) string {
	var filters []string
	for _, cue := range cues {
		if f := buildDrawText(cue, style); f != "" {
			filters = append(filters, f)
		}
	}
	if len(filters) == 0 {
		return "null"
	}
	return strings.Join(filters, ",")
}

func buildDrawText(cue Cue, style Style) string {
	if cue.End-cue.Start <= 0 || strings.TrimSpace(cue.Text) == "" {
		return ""
	}

	yRatio := style.YRatio
	if yRatio <= 0 || yRatio >= 1 {
		yRatio = DefaultStyle().YRatio
	}
	shadowOffset := max(style.FontSize/20, 1)

	values := []string{
		fmt.Sprintf("text='%s'", escapeDrawText(style.Apply(cue.Text))),
		fmt.Sprintf("fontsize=%d", max(style.FontSize, 12)),
		fmt.Sprintf("fontcolor=%s", fallback(style.Color, "yellow")),
		fmt.Sprintf("shadowcolor=%s", fallback(style.ShadowColor, "black")),
		fmt.Sprintf("shadowx=%d", shadowOffset),
		fmt.Sprintf("shadowy=%d", shadowOffset),
		"x=(w-text_w)/2",
		fmt.Sprintf("y=h*%s", media.FormatSeconds(yRatio)),
	}
	if strings.TrimSpace(style.FontFile) != "" {
		values = append(values, fmt.Sprintf("fontfile='%s'", escapeFFmpegPath(style.FontFile)))
	}

	enable := fmt.Sprintf("between(t,%s,%s)", media.FormatSeconds(cue.Start), media.FormatSeconds(cue.End))
	values = append(values, fmt.Sprintf("enable='%s'", escapeFilterValue(enable)))

	return "drawtext=" + strings.Join(values, ":")
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func escapeDrawText(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")

	const newlinePlaceholder = "\u0000"
	value = strings.ReplaceAll(value, "\n", newlinePlaceholder)

	value = escapeFilterValueNoQuotes(value)
	value = strings.ReplaceAll(value, "%", `\%`)
	value = strings.ReplaceAll(value, newlinePlaceholder, `\n`)
	// A quote cannot appear inside a quoted value: close it, add an escaped
	// quote for the option parser (itself escaped for the graph parser) and
	// reopen.
	value = strings.ReplaceAll(value, "'", `'\\\''`)
	return value
}

func escapeFFmpegPath(value string) string {
	value = filepath.Clean(value)
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, ":", `\:`)
	value = strings.ReplaceAll(value, "'", `\'`)
	return value
}

func escapeFilterValue(value string) string {
	value = escapeFilterValueNoQuotes(value)
	value = strings.ReplaceAll(value, "'", `\'`)
	return value
}

func escapeFilterValueNoQuotes(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, ":", `\:`)
	value = strings.ReplaceAll(value, ",", `\,`)
	return value
}
