package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"stockmerge/internal/config"
	"stockmerge/internal/paths"
	"stockmerge/internal/timeline"
)

var configInitForce bool

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the job configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter job file (TOML when the path ends in .toml)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}
	cmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration in YAML",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

// starterConfig is the job written by config init.
func starterConfig() config.Config {
	cfg := config.Default()
	cfg.MainVideo = "main.mp4"
	cfg.StockVideos = []string{"stock1.mp4", "stock2.mp4"}
	cfg.Output = "merged.mp4"
	cfg.Overlays = []timeline.Request{
		{Start: 14, End: 21, StockIndex: 0},
		{Start: 61, End: 71, StockIndex: 1},
	}
	cfg.Transitions.Seed = 1
	return cfg
}

func resolveInitPath(args []string) (string, error) {
	target := configPath
	if len(args) > 0 {
		target = args[0]
	}
	if strings.TrimSpace(target) == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		target = filepath.Join(cwd, paths.DefaultConfigYAML)
	}
	return filepath.Abs(target)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	target, err := resolveInitPath(args)
	if err != nil {
		return err
	}

	exists, err := paths.FileExists(target)
	if err != nil {
		return err
	}
	if exists && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", target)
	}

	cfg := starterConfig()
	var data []byte
	if config.IsTOML(target) {
		data, err = cfg.MarshalTOML()
	} else {
		data, err = cfg.Marshal()
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	cmd.Printf("Wrote %s\n", target)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadJob()
	if err != nil {
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), string(data))
	if len(data) == 0 || data[len(data)-1] != '\n' {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
