package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stockmerge/internal/media"
	"stockmerge/internal/timeline"
)

// FileStamp identifies an input file by path, size and modification time.
type FileStamp struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Stamp stats path.
func Stamp(path string) (FileStamp, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileStamp{}, err
	}
	return FileStamp{Path: abs, Size: info.Size(), ModTime: info.ModTime().UTC()}, nil
}

// JobInput is the canonical structure hashed to detect changed merges.
type JobInput struct {
	Primary     FileStamp          `json:"primary"`
	Stocks      []FileStamp        `json:"stocks"`
	Requests    []timeline.Request `json:"requests"`
	PreRoll     float64            `json:"pre_roll"`
	Bridge      float64            `json:"bridge"`
	Backend     string             `json:"backend"`
	Effects     []string           `json:"effects"`
	Seed        int64              `json:"seed"`
	ShortPolicy string             `json:"short_policy"`
	Encoding    media.Encoding     `json:"encoding"`
}

// InputHash returns a deterministic hash of all render-relevant job inputs.
func InputHash(in JobInput) string {
	return hashJSON(in)
}

func hashJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Should never happen with known struct types.
		return fmt.Sprintf("sha256:error-%v", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("sha256:%x", sum)
}
