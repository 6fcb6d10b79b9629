package captions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// GroupedFileName is the conventional name of the grouped caption file.
const GroupedFileName = "grouped_subtitles.json"

type groupedEntry struct {
	Words string `json:"words"`
}

// MarshalGrouped encodes groups as {"<second>": {"words": "..."}} with keys in
// ascending numeric order.
func MarshalGrouped(groups []Group) ([]byte, error) {
	sorted := append([]Group(nil), groups...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Second < sorted[j].Second })

	var buf bytes.Buffer
	buf.WriteString("{")
	for i, g := range sorted {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		buf.WriteString(strconv.Quote(strconv.Itoa(g.Second)))
		buf.WriteString(": ")
		entry, err := json.Marshal(groupedEntry{Words: g.Text})
		if err != nil {
			return nil, err
		}
		buf.Write(entry)
	}
	if len(sorted) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// UnmarshalGrouped decodes the grouped caption format.
func UnmarshalGrouped(data []byte) ([]Group, error) {
	var raw map[string]groupedEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse grouped captions: %w", err)
	}
	groups := make([]Group, 0, len(raw))
	for key, entry := range raw {
		second, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("parse grouped captions: key %q is not a second", key)
		}
		groups = append(groups, Group{Second: second, Text: entry.Words})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Second < groups[j].Second })
	return groups, nil
}

// WriteGrouped writes the grouped caption file to path.
func WriteGrouped(path string, groups []Group) error {
	data, err := MarshalGrouped(groups)
	if err != nil {
		return fmt.Errorf("encode grouped captions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure captions directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write grouped captions: %w", err)
	}
	return nil
}
