package core

// detect.go finds the depth and material columns of a decoded sheet.
//
// Header rows are matched first against the ordered PatternSet. When no
// header names a column, content heuristics over the first data rows pick
// one instead. The depth unit is read from the depth header here so that
// later stages never have to guess it.

import (
	"regexp"
	"strings"
)

const (
	// headerScanLastRow is the last row (inclusive) searched for headers.
	headerScanLastRow = 5

	// fallbackSampleRows bounds how many data rows the heuristics inspect.
	fallbackSampleRows = 10

	depthIncreasingRatio = 0.7
	materialTextRatio    = 0.5
	minMaterialSamples   = 3
)

var (
	meterUnitRegex = regexp.MustCompile(`(?i)\b(m|meters?|metres?|mbgl)\b`)
	feetUnitRegex  = regexp.MustCompile(`(?i)\b(ft|feet|foot|fbgl)\b|'`)
)

// ColumnMatch locates one detected column.
type ColumnMatch struct {
	Index     int    `json:"index"`
	Header    string `json:"header"`
	HeaderRow int    `json:"headerRow"`
	// Fallback is set when the column was chosen by content, not by header.
	Fallback bool `json:"fallback"`
}

// Detection is the outcome of DetectColumns. Depth and Material are nil
// when neither header matching nor the content fallback found them.
type Detection struct {
	Depth        *ColumnMatch `json:"depth"`
	Material     *ColumnMatch `json:"material"`
	EndDepth     *ColumnMatch `json:"endDepth,omitempty"`
	DepthUnit    DepthUnit    `json:"depthUnit"`
	UnitExplicit bool         `json:"unitExplicit"`
	DataStartRow int          `json:"dataStartRow"`
}

// DetectColumns scans grid for depth, material and optional end-depth columns.
func DetectColumns(grid Grid, patterns PatternSet) Detection {
	det := Detection{DepthUnit: UnitFeet}
	if len(grid) == 0 {
		return det
	}

	lastHeaderRow := min(headerScanLastRow, len(grid)-1)

	det.Depth = matchHeader(grid, lastHeaderRow, func(text string, col int) bool {
		return matchesAny(patterns.Depth, text) && !matchesAny(patterns.EndDepth, text)
	})
	det.Material = matchHeader(grid, lastHeaderRow, func(text string, col int) bool {
		if det.Depth != nil && col == det.Depth.Index {
			return false
		}
		return matchesAny(patterns.Material, text)
	})
	det.EndDepth = matchHeader(grid, lastHeaderRow, func(text string, col int) bool {
		if det.Depth != nil && col == det.Depth.Index {
			return false
		}
		if det.Material != nil && col == det.Material.Index {
			return false
		}
		return matchesAny(patterns.EndDepth, text)
	})

	det.DataStartRow = 0
	for _, m := range []*ColumnMatch{det.Depth, det.Material, det.EndDepth} {
		if m != nil && m.HeaderRow+1 > det.DataStartRow {
			det.DataStartRow = m.HeaderRow + 1
		}
	}

	if det.Depth == nil {
		det.Depth = fallbackDepthColumn(grid, det.DataStartRow, det.Material)
		if det.Depth != nil && det.Material == nil && det.EndDepth == nil {
			det.DataStartRow = firstNumericRow(grid, det.Depth.Index, det.DataStartRow)
		}
	}
	if det.Material == nil {
		det.Material = fallbackMaterialColumn(grid, det.DataStartRow, det.Depth, det.EndDepth)
	}

	if det.Depth != nil && !det.Depth.Fallback {
		det.DepthUnit, det.UnitExplicit = unitFromHeader(det.Depth.Header)
	}
	return det
}

// matchHeader returns the first cell in row-major order accepted by match.
func matchHeader(grid Grid, lastRow int, match func(text string, col int) bool) *ColumnMatch {
	for r := 0; r <= lastRow; r++ {
		for c := range grid[r] {
			text := strings.TrimSpace(grid[r][c].Value)
			if text == "" {
				continue
			}
			if match(text, c) {
				return &ColumnMatch{Index: c, Header: text, HeaderRow: r}
			}
		}
	}
	return nil
}

// fallbackDepthColumn picks the column whose numeric values increase most
// consistently over the sampled rows.
func fallbackDepthColumn(grid Grid, from int, exclude *ColumnMatch) *ColumnMatch {
	var best *ColumnMatch
	bestRatio := 0.0

	for c := 0; c < grid.Width(); c++ {
		if exclude != nil && exclude.Index == c {
			continue
		}
		var values []float64
		for r := from; r < len(grid) && r < from+fallbackSampleRows; r++ {
			if v, ok := ParseNumber(grid.Text(r, c)); ok {
				values = append(values, v)
			}
		}
		if len(values) < 2 {
			continue
		}
		increasing := 0
		for i := 1; i < len(values); i++ {
			if values[i] > values[i-1] {
				increasing++
			}
		}
		ratio := float64(increasing) / float64(len(values)-1)
		if ratio >= depthIncreasingRatio && ratio > bestRatio {
			bestRatio = ratio
			best = &ColumnMatch{Index: c, HeaderRow: -1, Fallback: true}
		}
	}
	return best
}

// fallbackMaterialColumn picks the column with the highest share of
// non-numeric text among its non-empty sampled cells.
func fallbackMaterialColumn(grid Grid, from int, exclude ...*ColumnMatch) *ColumnMatch {
	var best *ColumnMatch
	bestRatio := 0.0

	for c := 0; c < grid.Width(); c++ {
		if excluded(c, exclude) {
			continue
		}
		samples, text := 0, 0
		for r := from; r < len(grid) && r < from+fallbackSampleRows; r++ {
			v := CleanCell(grid.Text(r, c))
			if v == "" {
				continue
			}
			samples++
			if !IsNumeric(v) {
				text++
			}
		}
		if samples < minMaterialSamples {
			continue
		}
		ratio := float64(text) / float64(samples)
		if ratio >= materialTextRatio && ratio > bestRatio {
			bestRatio = ratio
			best = &ColumnMatch{Index: c, HeaderRow: -1, Fallback: true}
		}
	}
	return best
}

func excluded(col int, matches []*ColumnMatch) bool {
	for _, m := range matches {
		if m != nil && m.Index == col {
			return true
		}
	}
	return false
}

func firstNumericRow(grid Grid, col, from int) int {
	for r := from; r < len(grid); r++ {
		if IsNumeric(grid.Text(r, col)) {
			return r
		}
	}
	return from
}

// unitFromHeader infers the depth unit from header text. Headers without a
// recognizable unit default to feet.
func unitFromHeader(header string) (DepthUnit, bool) {
	switch {
	case meterUnitRegex.MatchString(header):
		return UnitMeters, true
	case feetUnitRegex.MatchString(header):
		return UnitFeet, true
	default:
		return UnitFeet, false
	}
}
