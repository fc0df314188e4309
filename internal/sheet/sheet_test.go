package sheet

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/strata/internal/core"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
		wantErr  bool
	}{
		{"log.xlsx", FormatXLSX, false},
		{"LOG.XLSX", FormatXLSX, false},
		{"bore.csv", FormatCSV, false},
		{"report.pdf", "", true},
		{"old.xls", "", true},
		{"notes.docx", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := DetectFormat(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectFormat(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DetectFormat(%q) = %q, want %q", tt.filename, got, tt.want)
			}
			if err != nil {
				var ee *core.ExtractionError
				if !errors.As(err, &ee) || ee.Kind != core.KindUnsupportedFormat {
					t.Errorf("error = %v, want unsupported-format", err)
				}
			}
		})
	}
}

func TestDecode_CSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "comma separated",
			input: "Depth,Material\n0,Clay\n5,Sand\n",
			want:  [][]string{{"Depth", "Material"}, {"0", "Clay"}, {"5", "Sand"}},
		},
		{
			name:  "BOM stripped",
			input: "\xEF\xBB\xBFDepth,Material\n0,Clay\n",
			want:  [][]string{{"Depth", "Material"}, {"0", "Clay"}},
		},
		{
			name:  "semicolon delimited",
			input: "Depth;Material\n0;\"Clay, stiff\"\n",
			want:  [][]string{{"Depth", "Material"}, {"0", "Clay, stiff"}},
		},
		{
			name:  "tab delimited",
			input: "Depth\tMaterial\n0\tClay\n",
			want:  [][]string{{"Depth", "Material"}, {"0", "Clay"}},
		},
		{
			name:  "ragged rows",
			input: "Depth,Material,Notes\n0,Clay\n",
			want:  [][]string{{"Depth", "Material", "Notes"}, {"0", "Clay"}},
		},
		{
			name:  "invalid utf8 replaced",
			input: "Depth,Material\n0,Cl\xFFay\n",
			want:  [][]string{{"Depth", "Material"}, {"0", "Cl?ay"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid, err := NewDecoder().Decode(context.Background(), "bore.csv", strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			assertGrid(t, grid, tt.want)
		})
	}
}

func TestDecode_CSVErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		_, err := NewDecoder().Decode(ctx, "a.csv", strings.NewReader(" \n"))
		var ee *core.ExtractionError
		if !errors.As(err, &ee) || ee.Kind != core.KindInsufficientData {
			t.Errorf("Decode() error = %v, want insufficient-data", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		_, err := NewDecoder(WithMaxBytes(10)).Decode(ctx, "a.csv", strings.NewReader(strings.Repeat("1,clay\n", 20)))
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("Decode() error = %v, want ErrFileTooLarge", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := NewDecoder().Decode(cctx, "a.csv", strings.NewReader("1,clay\n")); !errors.Is(err, context.Canceled) {
			t.Errorf("Decode() error = %v, want context.Canceled", err)
		}
	})
}

func TestDecode_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"Bore BH-1"},
		{"Depth (m)", "Material"},
		{0, "Clay"},
		{1.5, nil},
		{3, "Gravel"},
	}
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue("Sheet1", cell, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	style, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#ffcc00"}}})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellStyle("Sheet1", "B4", "B4", style); err != nil {
		t.Fatal(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	grid, err := NewDecoder().Decode(context.Background(), "bh-1.xlsx", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(grid) != 5 {
		t.Fatalf("len(grid) = %d, want 5", len(grid))
	}
	if got := grid.Text(1, 0); got != "Depth (m)" {
		t.Errorf("header = %q, want %q", got, "Depth (m)")
	}
	if got := grid.Text(3, 0); got != "1.5" {
		t.Errorf("depth = %q, want %q", got, "1.5")
	}
	if got := grid.Color(3, 1); got != "#FFCC00" {
		t.Errorf("fill of empty styled cell = %q, want #FFCC00", got)
	}
	if got := grid.Color(2, 1); got != "" {
		t.Errorf("unstyled cell color = %q, want empty", got)
	}
}

func TestDecode_XLSXSheetSelection(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.NewSheet("Log"); err != nil {
		t.Fatal(err)
	}
	_ = f.SetCellValue("Log", "A1", "Depth")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	grid, err := NewDecoder(WithSheet("log")).Decode(context.Background(), "a.xlsx", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := grid.Text(0, 0); got != "Depth" {
		t.Errorf("A1 = %q, want Depth", got)
	}

	_, err = NewDecoder(WithSheet("Missing")).Decode(context.Background(), "a.xlsx", bytes.NewReader(buf.Bytes()))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Decode(missing sheet) error = %v", err)
	}
}

func TestDecode_XLSXDistantCell(t *testing.T) {
	fill := excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#336699"}}}

	tests := []struct {
		name      string
		cell      string
		value     bool // distant cell holds a value rather than only a fill
		wantKind  core.ErrorKind
		wantWidth int
		wantRows  int
	}{
		{name: "value far right", cell: "XFD200", value: true, wantKind: core.KindFileCorrupted},
		{name: "value far down and right", cell: "XFD2000", value: true, wantKind: core.KindFileCorrupted},
		{name: "fill far away", cell: "XFD2000", wantWidth: 2, wantRows: 2},
		{name: "fill just past data", cell: "C2", wantWidth: 3, wantRows: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := excelize.NewFile()
			defer f.Close()
			for _, c := range []string{"A1", "B1", "A2", "B2"} {
				_ = f.SetCellValue("Sheet1", c, c)
			}
			if tt.value {
				_ = f.SetCellValue("Sheet1", tt.cell, "x")
			} else {
				style, err := f.NewStyle(&fill)
				if err != nil {
					t.Fatal(err)
				}
				if err := f.SetCellStyle("Sheet1", tt.cell, tt.cell, style); err != nil {
					t.Fatal(err)
				}
			}
			buf, err := f.WriteToBuffer()
			if err != nil {
				t.Fatal(err)
			}

			grid, err := NewDecoder().Decode(context.Background(), "far.xlsx", bytes.NewReader(buf.Bytes()))
			if tt.wantKind != "" {
				var ee *core.ExtractionError
				if !errors.As(err, &ee) || ee.Kind != tt.wantKind {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(grid) != tt.wantRows || grid.Width() != tt.wantWidth {
				t.Errorf("grid = %d rows x %d cols, want %d x %d", len(grid), grid.Width(), tt.wantRows, tt.wantWidth)
			}
			if got := grid.Text(1, 1); got != "B2" {
				t.Errorf("B2 = %q, want B2", got)
			}
		})
	}
}

func TestDecode_XLSXCorrupted(t *testing.T) {
	_, err := NewDecoder().Decode(context.Background(), "broken.xlsx", strings.NewReader("this is not a zip archive"))
	var ee *core.ExtractionError
	if !errors.As(err, &ee) || ee.Kind != core.KindFileCorrupted {
		t.Fatalf("Decode() error = %v, want file-corrupted", err)
	}
	if ee.Cause == nil {
		t.Error("Cause = nil, want the excelize error")
	}
	if fe := core.NewFatalError(err); len(fe.Errors) != 1 {
		t.Errorf("NewFatalError() = %v, want one fatal error", fe)
	}
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "north.csv")
	if err := os.WriteFile(path, []byte("Depth,Material\n0,Clay\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	grid, err := NewDecoder().DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeFile() error = %v", err)
	}
	assertGrid(t, grid, [][]string{{"Depth", "Material"}, {"0", "Clay"}})

	if _, err := NewDecoder(WithMaxBytes(4)).DecodeFile(context.Background(), path); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("DecodeFile() over limit error = %v, want ErrFileTooLarge", err)
	}
}

func TestNormalizeColor(t *testing.T) {
	tests := []struct{ in, want string }{
		{"FFCC00", "#FFCC00"},
		{"#ffcc00", "#FFCC00"},
		{"FF00FF00", "#00FF00"},
		{"red", ""},
		{"", ""},
		{"#GG0000", ""},
	}
	for _, tt := range tests {
		if got := NormalizeColor(tt.in); got != tt.want {
			t.Errorf("NormalizeColor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUTF8Sanitizer_SplitReads(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"multibyte across reads", "argile brûlée", "argile brûlée"},
		{"invalid byte", "a\xFFb", "a?b"},
		{"truncated at EOF", "ab\xC3", "ab?"},
		{"BOM then text", "\xEF\xBB\xBFclay", "clay"},
		{"shorter than BOM", "ab", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := wrapCSV(iotest.OneByteReader(strings.NewReader(tt.in)), 0)
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("read %q, want %q", got, tt.want)
			}
		})
	}
}

func assertGrid(t *testing.T, grid core.Grid, want [][]string) {
	t.Helper()
	if len(grid) != len(want) {
		t.Fatalf("len(grid) = %d, want %d", len(grid), len(want))
	}
	for r, row := range want {
		if len(grid[r]) != len(row) {
			t.Errorf("row %d has %d cells, want %d", r, len(grid[r]), len(row))
			continue
		}
		for c, v := range row {
			if got := grid.Text(r, c); got != v {
				t.Errorf("cell (%d,%d) = %q, want %q", r, c, got, v)
			}
		}
	}
}
