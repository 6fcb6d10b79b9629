package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stockmerge/internal/faults"
)

var (
	configPath string
	outputJSON bool
	verbose    bool
	logLevel   string
)

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for problems with the job itself and 1 for everything else.
func exitCode(err error) int {
	var cerr *faults.ConfigurationError
	if errors.As(err, &cerr) {
		return 2
	}
	return 1
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stockmerge",
		Short:         "Splice stock footage into a video with animated transitions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the job file (default ./stockmerge.yaml or ./stockmerge.toml)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror log records to stderr")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the job's log_level (debug, info, warn, error)")

	cmd.AddCommand(newMergeCmd())
	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newClipCmd())
	cmd.AddCommand(newCaptionCmd())
	cmd.AddCommand(newToolsCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}
