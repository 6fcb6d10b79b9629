package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"stockmerge/internal/config"
	"stockmerge/internal/logx"
	"stockmerge/internal/media"
	"stockmerge/internal/paths"
	"stockmerge/internal/tools"
)

// newRunner builds the process runner shared by one command.
var newRunner = func() media.Runner { return media.CmdRunner{} }

// loadJob resolves the job file from --config and loads it. A missing file
// yields the defaults.
func loadJob() (paths.JobPaths, config.Config, error) {
	jp, err := paths.Resolve(configPath)
	if err != nil {
		return paths.JobPaths{}, config.Config{}, err
	}
	cfg, err := config.Load(jp.ConfigFile)
	if err != nil {
		return paths.JobPaths{}, config.Config{}, err
	}
	if strings.TrimSpace(logLevel) != "" {
		cfg.LogLevel = logLevel
	}
	return paths.ApplyConfig(jp, cfg), cfg, nil
}

// openLogger writes to a timestamped file in dir and mirrors to stderr when
// --verbose is set.
func openLogger(cmd *cobra.Command, dir, level string) (*slog.Logger, io.Closer, error) {
	if strings.TrimSpace(logLevel) != "" {
		level = logLevel
	}
	return logx.New(logx.Options{
		Dir:     dir,
		Level:   level,
		Console: verbose,
		Stderr:  cmd.ErrOrStderr(),
	})
}

// openGlobalLogger is used by commands that do not need a job file.
func openGlobalLogger(cmd *cobra.Command, level string) (*slog.Logger, io.Closer, error) {
	dir, err := paths.GlobalLogsDir()
	if err != nil {
		// Logging is best effort for standalone commands.
		dir = ""
	}
	return openLogger(cmd, dir, level)
}

func toolOverrides(cfg config.Config) tools.Overrides {
	return tools.Overrides{
		FFmpeg:      cfg.Tools.FFmpeg,
		FFprobe:     cfg.Tools.FFprobe,
		Interpreter: cfg.Transitions.Interpreter,
	}
}

// requireTools detects the tool set and fails unless every named tool is
// usable. It returns the statuses so callers can use the resolved paths.
func requireTools(cmd *cobra.Command, runner media.Runner, cfg config.Config, need ...string) ([]tools.Status, error) {
	defs := tools.Definitions(toolOverrides(cfg))
	statuses := tools.Detect(cmd.Context(), runner, defs)
	if err := tools.Require(statuses, defs, need...); err != nil {
		return statuses, err
	}
	return statuses, nil
}

// toolPath returns the resolved executable for name, or fallback when it was
// not found.
func toolPath(statuses []tools.Status, name, fallback string) string {
	for _, st := range statuses {
		if st.Tool == name && st.Path != "" {
			return st.Path
		}
	}
	return fallback
}

// mediaTools builds the ffmpeg and ffprobe wrappers from detected paths.
func mediaTools(runner media.Runner, statuses []tools.Status, cfg config.Config, logger *slog.Logger) (*media.FFmpeg, *media.Prober) {
	ff := media.NewFFmpeg(runner, toolPath(statuses, tools.FFmpeg, cfg.Tools.FFmpeg), logger)
	prober := media.NewProber(runner, toolPath(statuses, tools.FFprobe, cfg.Tools.FFprobe))
	return ff, prober
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
