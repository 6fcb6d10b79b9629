package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"stockmerge/internal/clips"
	"stockmerge/internal/tools"
)

var (
	clipInput  string
	clipRanges []string
	clipOutDir string
)

func newClipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clip",
		Short: "Cut numbered clips out of a video",
		Long: `Cut one clip per --range into <input dir>/clips/clip_N.mp4.
Ranges are "start,end" in seconds or m:ss timecodes, for example --range 10,20 --range 1:05,1:12.5`,
		Args: cobra.NoArgs,
		RunE: runClip,
	}

	cmd.Flags().StringVarP(&clipInput, "input", "i", "", "Video to cut")
	cmd.Flags().StringArrayVarP(&clipRanges, "range", "r", nil, "Clip range as start,end (repeatable)")
	cmd.Flags().StringVar(&clipOutDir, "out-dir", "", "Directory for the clips (default <input dir>/clips)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("range")

	return cmd
}

func parseRanges(values []string) ([]clips.Range, error) {
	ranges := make([]clips.Range, 0, len(values))
	for _, v := range values {
		r, err := clips.ParseRange(v)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func runClip(cmd *cobra.Command, _ []string) error {
	ranges, err := parseRanges(clipRanges)
	if err != nil {
		return err
	}
	input, err := filepath.Abs(clipInput)
	if err != nil {
		return fmt.Errorf("resolve input: %w", err)
	}

	_, cfg, err := loadJob()
	if err != nil {
		return err
	}
	logger, closer, err := openGlobalLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	runner := newRunner()
	statuses, err := requireTools(cmd, runner, cfg, tools.FFmpeg, tools.FFprobe)
	if err != nil {
		return err
	}
	ff, prober := mediaTools(runner, statuses, cfg, logger)

	cutter := &clips.Cutter{
		FFmpeg:   ff,
		Prober:   prober,
		Encoding: cfg.Encoding.Resolve(),
		Logger:   logger,
	}
	written, err := cutter.Cut(cmd.Context(), input, ranges, clipOutDir, nil)

	if outputJSON {
		payload := struct {
			Input string   `json:"input"`
			Clips []string `json:"clips"`
			Error string   `json:"error,omitempty"`
		}{Input: input, Clips: written, Error: errorString(err)}
		if payload.Clips == nil {
			payload.Clips = []string{}
		}
		if jerr := writeJSON(cmd, payload); jerr != nil {
			return jerr
		}
		return err
	}

	for i, path := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "clip %d %s → %s\n", i+1, ranges[i], path)
	}
	return err
}
