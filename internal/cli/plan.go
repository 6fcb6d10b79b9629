package cli

import (
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"stockmerge/internal/config"
	"stockmerge/internal/media"
	"stockmerge/internal/timeline"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Validate the job and print its transition windows without touching media",
		Args:  cobra.NoArgs,
		RunE:  runPlan,
	}
}

type planJSON struct {
	Config   string                    `json:"config"`
	Output   string                    `json:"output"`
	Windows  []planJSONWindow          `json:"windows"`
	Findings []config.ValidationResult `json:"findings,omitempty"`
}

type planJSONWindow struct {
	Seq               int     `json:"seq"`
	Start             float64 `json:"start"`
	End               float64 `json:"end"`
	Stock             int     `json:"stock"`
	StockPath         string  `json:"stock_path"`
	TransitionInStart float64 `json:"transition_in_start"`
	MainSegmentInEnd  float64 `json:"main_segment_in_end"`
	MainSegmentOutEnd float64 `json:"main_segment_out_end"`
}

func runPlan(cmd *cobra.Command, _ []string) error {
	jp, cfg, err := loadJob()
	if err != nil {
		return err
	}

	findings := cfg.Validate()
	if err := config.Err(findings); err != nil {
		if outputJSON {
			_ = writeJSON(cmd, planJSON{Config: jp.ConfigFile, Output: cfg.Output, Windows: []planJSONWindow{}, Findings: findings})
		}
		return err
	}

	windows, err := timeline.Plan(cfg.Overlays, len(cfg.StockVideos), timeline.Timing{
		PreRoll: cfg.Timing.PreRollSec,
		Bridge:  cfg.Timing.BridgeSec,
	})
	if err != nil {
		return err
	}

	if outputJSON {
		payload := planJSON{
			Config:   jp.ConfigFile,
			Output:   cfg.Output,
			Windows:  make([]planJSONWindow, 0, len(windows)),
			Findings: findings,
		}
		for _, w := range windows {
			payload.Windows = append(payload.Windows, planJSONWindow{
				Seq:               w.Seq,
				Start:             w.Start,
				End:               w.End,
				Stock:             w.StockIndex,
				StockPath:         cfg.StockVideos[w.StockIndex],
				TransitionInStart: w.TransitionInStart,
				MainSegmentInEnd:  w.MainSegmentInEnd,
				MainSegmentOutEnd: w.MainSegmentOutEnd,
			})
		}
		return writeJSON(cmd, payload)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job: %s\n", jp.ConfigFile)
	fmt.Fprintf(out, "Main video: %s\n", cfg.MainVideo)
	fmt.Fprintf(out, "Output: %s\n", cfg.Output)
	fmt.Fprintf(out, "Backend: %s (%s)\n", cfg.Transitions.Backend, seedText(cfg.Transitions.Seed))
	fmt.Fprintln(out, renderPlanTable(windows, cfg.StockVideos))
	for _, f := range findings {
		fmt.Fprintf(out, "%s: %s: %s\n", f.Level, f.Field, f.Message)
	}
	return nil
}

func seedText(seed int64) string {
	if seed == 0 {
		return "random seed"
	}
	return fmt.Sprintf("seed %d", seed)
}

func renderPlanTable(windows []timeline.Window, stocks []string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Start", "End", "Stock", "Entry bridge", "Exit bridge"})
	for _, w := range windows {
		tw.AppendRow(table.Row{
			w.Seq,
			seconds(w.Start),
			seconds(w.End),
			fmt.Sprintf("%d %s", w.StockIndex, filepath.Base(stocks[w.StockIndex])),
			seconds(w.TransitionInStart) + " → " + seconds(w.MainSegmentInEnd),
			seconds(w.MainSegmentOutStart) + " → " + seconds(w.MainSegmentOutEnd),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	first, last := timeline.Span(windows)
	tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d window(s)", len(windows)), "from " + seconds(first), "to " + seconds(last)})
	return tw.Render()
}

func seconds(v float64) string {
	return media.FormatSeconds(v) + "s"
}
