package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stockmerge/internal/config"
)

// Default job file names, in lookup order.
const (
	DefaultConfigYAML = "stockmerge.yaml"
	DefaultConfigTOML = "stockmerge.toml"
)

// JobPaths captures canonical locations for one merge job.
type JobPaths struct {
	Root       string
	ConfigFile string
	LogsDir    string
	// WorkDir is the parent of run directories. Empty means os.TempDir.
	WorkDir string
}

// Resolve determines the job file from the optional --config flag. Without
// the flag it looks for stockmerge.yaml, then stockmerge.toml, in the working
// directory and falls back to the YAML name.
func Resolve(configFlag string) (JobPaths, error) {
	if strings.TrimSpace(configFlag) != "" {
		file, err := filepath.Abs(configFlag)
		if err != nil {
			return JobPaths{}, fmt.Errorf("resolve config path: %w", err)
		}
		return newJobPaths(filepath.Dir(file), file), nil
	}

	root, err := os.Getwd()
	if err != nil {
		return JobPaths{}, fmt.Errorf("resolve working directory: %w", err)
	}
	file := filepath.Join(root, DefaultConfigYAML)
	if ok, _ := FileExists(file); !ok {
		if ok, _ := FileExists(filepath.Join(root, DefaultConfigTOML)); ok {
			file = filepath.Join(root, DefaultConfigTOML)
		}
	}
	return newJobPaths(root, file), nil
}

func newJobPaths(root, file string) JobPaths {
	return JobPaths{
		Root:       root,
		ConfigFile: file,
		LogsDir:    filepath.Join(root, "logs"),
	}
}

// ApplyConfig applies the job's directory overrides.
func ApplyConfig(jp JobPaths, cfg config.Config) JobPaths {
	if logs := strings.TrimSpace(cfg.LogsDir); logs != "" {
		jp.LogsDir = resolveJobPath(jp.Root, logs)
	}
	if work := strings.TrimSpace(cfg.WorkDir); work != "" {
		jp.WorkDir = resolveJobPath(jp.Root, work)
	}
	return jp
}

func resolveJobPath(root, value string) string {
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}

// EnsureDirs creates the logs directory and, when set, the work directory.
func (p JobPaths) EnsureDirs() error {
	dirs := []string{p.LogsDir}
	if p.WorkDir != "" {
		dirs = append(dirs, p.WorkDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GlobalDir returns the user-level directory (~/.stockmerge), creating it.
func GlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}
	dir := filepath.Join(home, ".stockmerge")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create global dir: %w", err)
	}
	return dir, nil
}

// GlobalLogsDir returns ~/.stockmerge/logs, used by commands that run
// without a job file.
func GlobalLogsDir() (string, error) {
	global, err := GlobalDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(global, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create global logs dir: %w", err)
	}
	return dir, nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
