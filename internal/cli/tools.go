package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"stockmerge/internal/tools"
	"stockmerge/internal/tui"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Report ffmpeg, ffprobe and interpreter availability",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}
}

func runTools(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadJob()
	if err != nil {
		return err
	}

	defs := tools.Definitions(toolOverrides(cfg))
	statuses := tools.Detect(cmd.Context(), newRunner(), defs)

	if outputJSON {
		if err := writeJSON(cmd, statuses); err != nil {
			return err
		}
	} else {
		printStatusTable(cmd, statuses)
	}
	return tools.Require(statuses, defs)
}

func printStatusTable(cmd *cobra.Command, statuses []tools.Status) {
	if len(statuses) == 0 {
		cmd.Println("(no tool statuses)")
		return
	}

	rows := make([]tools.Status, len(statuses))
	copy(rows, statuses)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Tool < rows[j].Tool
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-12s %-10s %-8s %-4s %s\n", "Tool", "Version", "Minimum", "OK", "Path")
	for _, st := range rows {
		ok := "no"
		if st.Satisfied {
			ok = "yes"
		}
		path := st.Path
		if path == "" {
			path = "(missing)"
		}
		fmt.Fprintf(out, "%-12s %-10s %-8s %-4s %s\n", st.Tool, tui.NonEmptyOrDash(st.Version), st.Minimum, ok, path)
		if st.Error != "" {
			fmt.Fprintf(out, "  error: %s\n", st.Error)
		}
		for _, note := range st.Notes {
			fmt.Fprintf(out, "  hint: %s\n", note)
		}
	}
}
