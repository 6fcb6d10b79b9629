package tools

import (
	"runtime"
	"strings"
)

// Tool names.
const (
	FFmpeg      = "ffmpeg"
	FFprobe     = "ffprobe"
	Interpreter = "interpreter"
)

// Definitions returns the tools a merge can use, with overrides applied.
// The interpreter is optional because the xfade backend does not need it.
func Definitions(o Overrides) []ToolDefinition {
	return []ToolDefinition{
		{
			Name:           FFmpeg,
			Executable:     pick(o.FFmpeg, executableName("ffmpeg")),
			VersionSwitch:  "-version",
			MinimumVersion: "4.4",
		},
		{
			Name:           FFprobe,
			Executable:     pick(o.FFprobe, executableName("ffprobe")),
			VersionSwitch:  "-version",
			MinimumVersion: "4.4",
		},
		{
			Name:           Interpreter,
			Executable:     pick(o.Interpreter, executableName("python3")),
			VersionSwitch:  "--version",
			MinimumVersion: "3.8",
			Optional:       true,
		},
	}
}

func pick(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
