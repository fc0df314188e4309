package sheet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/strata/internal/core"
)

const (
	// ctxCheckEvery is how many rows are decoded between cancellation checks.
	ctxCheckEvery = 256

	// maxGridCells bounds the cells materialized from one sheet. A single
	// far-away cell would otherwise size the grid.
	maxGridCells = 250_000
)

func (d *Decoder) decodeXLSX(ctx context.Context, r io.Reader) (core.Grid, error) {
	data, err := io.ReadAll(io.LimitReader(r, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, d.maxBytes)
	}
	if len(data) == 0 {
		return nil, core.NewExtractionError(core.KindInsufficientData, "empty file")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, corrupted(err, "cannot open workbook: %v", err)
	}
	defer f.Close()

	sheet, err := d.pickSheet(f)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, corrupted(err, "cannot read sheet %q: %v", sheet, err)
	}

	width, height, err := gridExtent(f, sheet, rows)
	if err != nil {
		return nil, err
	}

	fills := fillCache{f: f, colors: make(map[int]string)}
	grid := make(core.Grid, height)
	used := 0
	for ri := 0; ri < height; ri++ {
		if ri%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var values []string
		if ri < len(rows) {
			values = rows[ri]
		}
		grid[ri] = make([]core.Cell, width)
		for ci := 0; ci < width; ci++ {
			cell := core.Cell{}
			if ci < len(values) {
				cell.Value = values[ci]
			}
			name, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				return nil, corrupted(err, "cell out of range: %v", err)
			}
			if color := fills.color(sheet, name); color != "" {
				cell.Style = &core.CellStyle{FillColor: color}
			}
			if cell.Value != "" || cell.Style != nil {
				used = max(used, ci+1)
			}
			grid[ri][ci] = cell
		}
	}
	return trimGrid(grid, used), nil
}

// gridExtent sizes the grid to scan. GetRows trims trailing empty cells, but
// an empty cell can still carry the fill that identifies its stratum, so the
// sheet's declared dimension widens the scan when it fits under
// maxGridCells. A dimension past the cap is ignored; values past the cap
// reject the sheet.
func gridExtent(f *excelize.File, sheet string, rows [][]string) (width, height int, err error) {
	for _, row := range rows {
		width = max(width, len(row))
	}
	height = len(rows)
	if width*height > maxGridCells {
		return 0, 0, core.NewExtractionError(core.KindFileCorrupted,
			"sheet %q spans %d columns by %d rows, more than %d cells", sheet, width, height, maxGridCells)
	}

	dimCols, dimRows := sheetExtent(f, sheet)
	if w, h := max(width, dimCols), max(height, dimRows); w*h <= maxGridCells {
		return w, h, nil
	}
	return width, height, nil
}

// trimGrid drops trailing columns and rows that carry neither a value nor
// a fill.
func trimGrid(grid core.Grid, width int) core.Grid {
	last := -1
	for ri, row := range grid {
		row = row[:min(width, len(row))]
		grid[ri] = row
		for _, cell := range row {
			if cell.Value != "" || cell.Style != nil {
				last = ri
				break
			}
		}
	}
	return grid[:last+1]
}

func (d *Decoder) pickSheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", core.NewExtractionError(core.KindInsufficientData, "workbook has no sheets")
	}
	if d.sheet == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if strings.EqualFold(s, d.sheet) {
			return s, nil
		}
	}
	return "", core.NewExtractionError(core.KindInsufficientData, "sheet %q not found (have %s)", d.sheet, strings.Join(sheets, ", "))
}

// sheetExtent returns the column and row count declared by the sheet's
// dimension ("A1:D40"). Missing or malformed dimensions yield zeros.
func sheetExtent(f *excelize.File, sheet string) (cols, rows int) {
	dim, err := f.GetSheetDimension(sheet)
	if err != nil || dim == "" {
		return 0, 0
	}
	last := dim
	if i := strings.LastIndex(dim, ":"); i >= 0 {
		last = dim[i+1:]
	}
	c, r, err := excelize.CellNameToCoordinates(last)
	if err != nil {
		return 0, 0
	}
	return c, r
}

// fillCache resolves a cell's solid fill color, memoized per style index.
type fillCache struct {
	f      *excelize.File
	colors map[int]string
}

func (c fillCache) color(sheet, cell string) string {
	idx, err := c.f.GetCellStyle(sheet, cell)
	if err != nil || idx == 0 {
		return ""
	}
	if color, ok := c.colors[idx]; ok {
		return color
	}

	color := ""
	if style, err := c.f.GetStyle(idx); err == nil && style != nil {
		fill := style.Fill
		if fill.Type == "pattern" && fill.Pattern > 0 && len(fill.Color) > 0 {
			color = NormalizeColor(fill.Color[0])
		}
	}
	c.colors[idx] = color
	return color
}

// NormalizeColor returns "#RRGGBB" for RGB or ARGB hex input, or "" when s
// is not a hex color.
func NormalizeColor(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 8 {
		s = s[2:]
	}
	if len(s) != 6 {
		return ""
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return ""
		}
	}
	return "#" + strings.ToUpper(s)
}
