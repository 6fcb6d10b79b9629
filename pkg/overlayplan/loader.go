// Package overlayplan reads overlay lists from CSV, TSV or YAML files.
package overlayplan

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"stockmerge/internal/timeline"
)

// Row is a validated overlay entry.
type Row struct {
	Index      int
	Line       int
	StartRaw   string
	Start      float64
	End        float64
	StockIndex int
	Note       string
}

// Request converts the row to a timeline request.
func (r Row) Request() timeline.Request {
	return timeline.Request{Start: r.Start, End: r.End, StockIndex: r.StockIndex}
}

// Rows is an ordered overlay list.
type Rows []Row

// Requests converts every row.
func (rows Rows) Requests() []timeline.Request {
	out := make([]timeline.Request, len(rows))
	for i, r := range rows {
		out[i] = r.Request()
	}
	return out
}

// header aliases accepted for each logical column.
var headerAliases = map[string]string{
	"start":       "start",
	"start_time":  "start",
	"end":         "end",
	"end_time":    "end",
	"duration":    "duration",
	"stock":       "stock",
	"stock_index": "stock",
	"note":        "note",
	"name":        "note",
}

// Load reads path, choosing YAML for .yaml/.yml and delimited text otherwise.
// When rows fail validation the error is ValidationErrors and the parsed rows
// are still returned.
func Load(path string) (Rows, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	default:
		return LoadDelimited(path)
	}
}

// LoadDelimited reads a CSV or TSV overlay list with a header row. The
// delimiter is detected from the header line.
func LoadDelimited(path string) (Rows, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("overlay file is empty")
	}

	comma, err := detectDelimiter(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	var (
		rows      Rows
		errs      ValidationErrors
		headerMap map[string]int
		line      int
	)

	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse file: %w", err)
		}
		line, _ = reader.FieldPos(0)

		if headerMap == nil {
			headerMap, err = buildHeaderMap(record)
			if err != nil {
				return nil, err
			}
			continue
		}
		if isEmptyRecord(record) {
			continue
		}

		fields := make(map[string]string, len(headerMap))
		for name, pos := range headerMap {
			if pos < len(record) {
				fields[name] = cleanValue(record[pos])
			}
		}
		row, rowErrs := parseFields(fields, len(rows)+1, line)
		errs = append(errs, rowErrs...)
		rows = append(rows, row)
	}

	if headerMap == nil {
		return nil, errors.New("missing header row")
	}
	if len(rows) == 0 {
		return nil, errors.New("no data rows found")
	}
	if len(errs) > 0 {
		return rows, errs
	}
	return rows, nil
}

func detectDelimiter(data []byte) (rune, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	headerLine := text
	if newline := strings.IndexAny(text, "\r\n"); newline != -1 {
		headerLine = text[:newline]
	}
	if strings.Contains(headerLine, "\t") {
		return '\t', nil
	}
	if strings.Contains(headerLine, ",") {
		return ',', nil
	}
	return 0, errors.New("unable to detect delimiter (expected comma or tab)")
}

func buildHeaderMap(header []string) (map[string]int, error) {
	if len(header) == 0 {
		return nil, errors.New("header row is empty")
	}
	headerMap := make(map[string]int, len(header))
	for idx, raw := range header {
		name, ok := headerAliases[normalizeHeader(raw)]
		if !ok {
			continue
		}
		if _, exists := headerMap[name]; exists {
			return nil, fmt.Errorf("duplicate header: %s", name)
		}
		headerMap[name] = idx
	}

	if _, ok := headerMap["start"]; !ok {
		return nil, errors.New("missing required header: start")
	}
	_, hasEnd := headerMap["end"]
	_, hasDuration := headerMap["duration"]
	switch {
	case !hasEnd && !hasDuration:
		return nil, errors.New("missing required header: end or duration")
	case hasEnd && hasDuration:
		return nil, errors.New("headers end and duration are mutually exclusive")
	}
	return headerMap, nil
}

func normalizeHeader(value string) string {
	return strings.ToLower(cleanValue(value))
}

func cleanValue(value string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "\ufeff"))
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// parseFields validates one entry. fields is keyed by logical column name.
func parseFields(fields map[string]string, index, line int) (Row, []ValidationError) {
	var errs []ValidationError
	fail := func(field, value, msg string) {
		errs = append(errs, ValidationError{Overlay: index, Line: line, Field: field, Value: value, Message: msg})
	}
	row := Row{Index: index, Line: line, Note: fields["note"]}

	row.StartRaw = fields["start"]
	if row.StartRaw == "" {
		fail("start", "", "start is required")
	} else if v, err := ParseTimecode(row.StartRaw); err != nil {
		fail("start", row.StartRaw, err.Error())
	} else {
		row.Start = v
	}

	endRaw := fields["end"]
	if raw, ok := fields["duration"]; ok {
		endRaw = raw
		if v, err := ParseTimecode(raw); err != nil {
			fail("duration", raw, err.Error())
		} else if v <= 0 {
			fail("duration", raw, "duration must be greater than 0")
		} else {
			row.End = row.Start + v
		}
	} else if endRaw == "" {
		fail("end", "", "end is required")
	} else if v, err := ParseTimecode(endRaw); err != nil {
		fail("end", endRaw, err.Error())
	} else {
		row.End = v
	}

	if raw := fields["stock"]; raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			fail("stock", raw, "stock must be an integer")
		} else if v < 0 {
			fail("stock", raw, "stock must be non-negative")
		} else {
			row.StockIndex = v
		}
	}

	if len(errs) == 0 && row.End <= row.Start {
		fail("end", endRaw, fmt.Sprintf("end must be after start %s", row.StartRaw))
	}
	return row, errs
}
