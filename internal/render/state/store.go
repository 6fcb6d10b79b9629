package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Suffix is appended to an output path to name its state file.
const Suffix = ".stockmerge.json"

// JobState records the inputs and outcome of the last successful merge for
// one output file.
type JobState struct {
	InputHash  string    `json:"input_hash"`
	RenderedAt time.Time `json:"rendered_at"`
	Output     string    `json:"output"`
	Primary    string    `json:"primary"`
	DurationS  float64   `json:"duration_s"`
	Seed       int64     `json:"seed"`
	Effects    []string  `json:"effects"`
	Segments   int       `json:"segments"`
}

// PathFor returns the state file path for output.
func PathFor(output string) string {
	return output + Suffix
}

// Load reads job state from the given path. A missing or corrupt file
// returns nil without error.
func Load(path string) (*JobState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}

	var js JobState
	if err := json.Unmarshal(data, &js); err != nil {
		return nil, nil
	}
	return &js, nil
}

// Save writes the job state atomically to the given path.
func (js *JobState) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
