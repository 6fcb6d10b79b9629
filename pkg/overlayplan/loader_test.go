package overlayplan

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadCSVValid(t *testing.T) {
	path := writeFile(t, "overlays.csv", "start,end,stock,note\n"+
		"14,21,0,intro\n"+
		"1:01,1:11.5,1,\n")

	rows, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	if rows[0].Start != 14 || rows[0].End != 21 || rows[0].StockIndex != 0 || rows[0].Note != "intro" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Start != 61 || rows[1].End != 71.5 || rows[1].StockIndex != 1 {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
	if rows[1].StartRaw != "1:01" {
		t.Errorf("unexpected raw start: %q", rows[1].StartRaw)
	}

	reqs := rows.Requests()
	if reqs[1].Start != 61 || reqs[1].End != 71.5 || reqs[1].StockIndex != 1 {
		t.Errorf("unexpected request: %+v", reqs[1])
	}
}

func TestLoadTSVWithDurationAndBOM(t *testing.T) {
	path := writeFile(t, "overlays.tsv", "\ufeffStart_Time\tDuration\tStock_Index\n"+
		"0:05.250\t2\t3\n")

	rows, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if math.Abs(rows[0].Start-5.25) > 1e-9 || math.Abs(rows[0].End-7.25) > 1e-9 {
		t.Fatalf("unexpected times: %+v", rows[0])
	}
	if rows[0].StockIndex != 3 {
		t.Fatalf("unexpected stock index %d", rows[0].StockIndex)
	}
}

func TestLoadSkipsBlankAndCommentLines(t *testing.T) {
	path := writeFile(t, "overlays.csv", "start,end\n# first overlay\n10,20\n,\n30,40\n")
	rows, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(rows) != 2 || rows[1].Index != 2 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestLoadReportsValidationErrors(t *testing.T) {
	path := writeFile(t, "overlays.csv", "start,end,stock\n"+
		"abc,20,0\n"+
		"30,25,0\n"+
		"40,50,x\n")

	rows, err := Load(path)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows should still be returned, got %d", len(rows))
	}

	fields := make([]string, 0, len(verrs))
	for _, issue := range verrs.Issues() {
		fields = append(fields, issue.Field)
	}
	if got := strings.Join(fields, ","); got != "start,end,stock" {
		t.Fatalf("unexpected fields %s (%v)", got, verrs)
	}
	want := `overlay 2 (line 3) end "25": end must be after start 30`
	if got := verrs[1].Error(); got != want {
		t.Fatalf("error = %q; want %q", got, want)
	}
	if got := verrs[2].ConfigField("overlays_file"); got != "overlays_file[2].stock" {
		t.Fatalf("config field = %q", got)
	}
}

func TestLoadHeaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantMsg string
	}{
		{"no delimiter", "start\n10\n", "delimiter"},
		{"missing start", "end,stock\n10,0\n", "start"},
		{"missing end", "start,stock\n10,0\n", "end or duration"},
		{"end and duration", "start,end,duration\n10,20,10\n", "mutually exclusive"},
		{"duplicate alias", "start,start_time,end\n1,2,3\n", "duplicate"},
		{"header only", "start,end\n", "no data rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "o.csv", tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "overlays.yaml", `
- start: 14
  end: 21
  stock: 0
- start: "1:01"
  duration: 10
  stock: 1
  note: chorus
`)
	rows, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].Start != 61 || rows[1].End != 71 || rows[1].Note != "chorus" {
		t.Fatalf("unexpected row: %+v", rows[1])
	}
}

func TestLoadYAMLValidation(t *testing.T) {
	path := writeFile(t, "overlays.yml", "- start: 5\n- start: 10\n  end: 8\n")
	rows, err := Load(path)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(rows) != 2 || len(verrs) != 2 {
		t.Fatalf("unexpected rows=%d errs=%v", len(rows), verrs)
	}
}

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"14", 14, false},
		{"21.26", 21.26, false},
		{"1:23", 83, false},
		{"75:00", 4500, false},
		{"1:02:03.5", 3723.5, false},
		{"0:60", 0, true},
		{"1:60:00", 0, true},
		{"-3", 0, true},
		{"1:2:3:4", 0, true},
		{"0:05.", 0, true},
		{"", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"-Inf", 0, true},
		{"+Infinity", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimecode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimecode(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimecode(%q) error: %v", tt.in, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseTimecode(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidationErrorLocation(t *testing.T) {
	tests := []struct {
		err  ValidationError
		want string
	}{
		{ValidationError{Message: "bad"}, "overlay: bad"},
		{ValidationError{Line: 4, Message: "bad"}, "line 4: bad"},
		{ValidationError{Overlay: 2, Line: 2, Field: "start", Message: "start is required"}, "overlay 2 start: start is required"},
		{ValidationError{Overlay: 1, Line: 5, Field: "stock", Value: "x", Message: "stock must be an integer"}, `overlay 1 (line 5) stock "x": stock must be an integer`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q; want %q", got, tt.want)
		}
	}
	if got := (ValidationError{Field: "end"}).ConfigField("overlays_file"); got != "overlays_file.end" {
		t.Errorf("ConfigField without overlay = %q", got)
	}
}

func TestLoadYAMLRejectsNonFiniteTimes(t *testing.T) {
	path := writeFile(t, "overlays.yaml", "- {start: .nan, end: 10}\n- {start: 5, end: .inf}\n")
	_, err := Load(path)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verrs) != 2 || verrs[0].Field != "start" || verrs[1].Field != "end" {
		t.Fatalf("unexpected issues %v", verrs)
	}
}
