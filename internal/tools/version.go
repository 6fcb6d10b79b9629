package tools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"stockmerge/internal/media"
)

func readVersion(ctx context.Context, runner media.Runner, def ToolDefinition, path string) (string, error) {
	result, err := runner.Run(ctx, path, []string{def.VersionSwitch}, media.RunOptions{})
	if err != nil {
		return "", fmt.Errorf("%s version: %w", def.Name, err)
	}

	// python2 printed its version on stderr.
	output := result.Stdout
	if len(strings.TrimSpace(string(output))) == 0 {
		output = result.Stderr
	}
	line := firstLine(strings.TrimSpace(string(output)))
	if line == "" {
		return "", fmt.Errorf("%s version: empty output", def.Name)
	}
	return normalizeVersion(line), nil
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}

var versionRegex = regexp.MustCompile(`([0-9]+)(?:\.([0-9]+))?(?:\.([0-9]+))?`)

func normalizeVersion(line string) string {
	match := versionRegex.FindString(line)
	if match == "" {
		return line
	}
	return match
}

func meetsMinimum(version, minimum string) bool {
	if minimum == "" {
		return true
	}
	if version == "" {
		return false
	}

	vParts := numericParts(version)
	mParts := numericParts(minimum)
	for len(vParts) < len(mParts) {
		vParts = append(vParts, 0)
	}
	for len(mParts) < len(vParts) {
		mParts = append(mParts, 0)
	}
	for i := 0; i < len(vParts) && i < len(mParts); i++ {
		if vParts[i] > mParts[i] {
			return true
		}
		if vParts[i] < mParts[i] {
			return false
		}
	}
	return true
}

func numericParts(version string) []int {
	var parts []int
	current := strings.Builder{}
	for _, r := range version {
		if r >= '0' && r <= '9' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			val, _ := strconv.Atoi(current.String())
			parts = append(parts, val)
			current.Reset()
		}
	}
	if current.Len() > 0 {
		val, _ := strconv.Atoi(current.String())
		parts = append(parts, val)
	}
	return parts
}
