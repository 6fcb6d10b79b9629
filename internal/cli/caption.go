package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"stockmerge/internal/captions"
	"stockmerge/internal/config"
	"stockmerge/internal/faults"
	"stockmerge/internal/tools"
)

var (
	captionInput      string
	captionOutput     string
	captionWords      string
	captionTranscribe bool
	captionGrouped    string
)

func newCaptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caption",
		Short: "Burn word-timed captions into a video",
		Long: `Group word timings by second, write grouped_subtitles.json and burn the
captions into a copy of the video. Word timings come from --words, or from the
OpenAI transcription API with --transcribe (the key is read from the variable
named by captions.api_key_env, OPENAI_API_KEY by default).`,
		Args: cobra.NoArgs,
		RunE: runCaption,
	}

	cmd.Flags().StringVarP(&captionInput, "input", "i", "", "Video to caption")
	cmd.Flags().StringVarP(&captionOutput, "output", "o", "", "Captioned video (default <input>_captioned.mp4)")
	cmd.Flags().StringVar(&captionWords, "words", "", "JSON file with word timings")
	cmd.Flags().BoolVar(&captionTranscribe, "transcribe", false, "Transcribe the audio with the OpenAI API")
	cmd.Flags().StringVar(&captionGrouped, "grouped", "", "Where to write grouped_subtitles.json (default next to the output)")
	_ = cmd.MarkFlagRequired("input")
	cmd.MarkFlagsMutuallyExclusive("words", "transcribe")
	cmd.MarkFlagsOneRequired("words", "transcribe")

	return cmd
}

// captionOutputPath derives <dir>/<name>_captioned.mp4 from the input.
func captionOutputPath(input, output string) string {
	if strings.TrimSpace(output) != "" {
		return output
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), base+"_captioned.mp4")
}

func captionStyle(cfg config.CaptionsConfig) captions.Style {
	return captions.Style{
		FontFile:    cfg.FontFile,
		FontSize:    cfg.FontSize,
		Color:       cfg.Color,
		ShadowColor: cfg.Shadow,
		YRatio:      cfg.YRatio,
		Transform:   cfg.Transform,
	}
}

func runCaption(cmd *cobra.Command, _ []string) error {
	input, err := filepath.Abs(captionInput)
	if err != nil {
		return fmt.Errorf("resolve input: %w", err)
	}
	output, err := filepath.Abs(captionOutputPath(input, captionOutput))
	if err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}

	jp, cfg, err := loadJob()
	if err != nil {
		return err
	}
	logger, closer, err := openGlobalLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	var transcriber captions.Transcriber
	if captionTranscribe {
		key := os.Getenv(cfg.Captions.APIKeyEnv)
		if strings.TrimSpace(key) == "" {
			cerr := &faults.ConfigurationError{}
			cerr.Add("captions.api_key_env", "%s is not set", cfg.Captions.APIKeyEnv)
			return cerr
		}
		transcriber, err = captions.NewOpenAI(key, cfg.Captions.BaseURL, cfg.Captions.Model, cfg.Captions.Language, logger)
		if err != nil {
			return err
		}
	}

	runner := newRunner()
	statuses, err := requireTools(cmd, runner, cfg, tools.FFmpeg, tools.FFprobe)
	if err != nil {
		return err
	}
	ff, prober := mediaTools(runner, statuses, cfg, logger)

	c := &captions.Captioner{
		FFmpeg:      ff,
		Prober:      prober,
		Transcriber: transcriber,
		Encoding:    cfg.Encoding.Resolve(),
		Style:       captionStyle(cfg.Captions),
		Logger:      logger,
	}
	res, err := c.Run(cmd.Context(), captions.Request{
		Input:       input,
		Output:      output,
		WordsPath:   captionWords,
		GroupedPath: captionGrouped,
		WorkDir:     jp.WorkDir,
	})

	if outputJSON {
		payload := struct {
			Output  string         `json:"output"`
			Grouped string         `json:"grouped,omitempty"`
			Words   int            `json:"words"`
			Cues    []captions.Cue `json:"cues"`
			Error   string         `json:"error,omitempty"`
		}{Output: output, Grouped: res.GroupedPath, Words: res.Words, Cues: res.Cues, Error: errorString(err)}
		if payload.Cues == nil {
			payload.Cues = []captions.Cue{}
		}
		if jerr := writeJSON(cmd, payload); jerr != nil {
			return jerr
		}
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "captioned %d word(s) in %d cue(s) → %s\n", res.Words, len(res.Cues), res.Output)
	fmt.Fprintf(cmd.OutOrStdout(), "grouped captions: %s\n", res.GroupedPath)
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "cleanup warning: %v\n", w)
	}
	return nil
}
