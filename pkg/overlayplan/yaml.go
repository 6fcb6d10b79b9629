package overlayplan

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a YAML sequence of overlay maps. Keys follow the same
// aliases as the delimited format; values may be numbers or timecodes.
func LoadYAML(path string) (Rows, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("overlay file is empty")
	}

	var rawRows []map[string]interface{}
	if err := yaml.Unmarshal(data, &rawRows); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if len(rawRows) == 0 {
		return nil, errors.New("no data rows found")
	}

	var (
		rows Rows
		errs ValidationErrors
	)
	for i, raw := range rawRows {
		fields := make(map[string]string, len(raw))
		for key, value := range raw {
			name, ok := headerAliases[normalizeHeader(key)]
			if !ok {
				continue
			}
			fields[name] = stringify(value)
		}
		if _, ok := fields["duration"]; ok {
			if _, both := fields["end"]; both {
				errs = append(errs, ValidationError{Overlay: i + 1, Line: i + 1, Field: "duration", Message: "end and duration are mutually exclusive"})
			}
		}
		row, rowErrs := parseFields(fields, i+1, i+1)
		errs = append(errs, rowErrs...)
		rows = append(rows, row)
	}

	if len(errs) > 0 {
		return rows, errs
	}
	return rows, nil
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
