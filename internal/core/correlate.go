package core

import (
	"fmt"
	"strings"
)

// ColorMaterialPrefix marks materials identified only by cell fill color.
const ColorMaterialPrefix = "color:"

// CorrelatedEntry pairs one depth with its material identification.
type CorrelatedEntry struct {
	Index         int       `json:"index"`
	Depth         float64   `json:"depth"`
	DepthUnit     DepthUnit `json:"depthUnit,omitempty"` // unit suffix on the cell, if any
	Material      string    `json:"material"`
	OriginalText  string    `json:"originalText"`
	OriginalColor string    `json:"originalColor,omitempty"`
	Source        Source    `json:"source,omitempty"`
}

// SkippedRow is a data row Correlate dropped.
type SkippedRow struct {
	Row    int    `json:"row"` // 0-based sheet row
	Reason string `json:"reason"`
}

// Correlation is the output of Correlate.
type Correlation struct {
	Entries    []CorrelatedEntry `json:"entries"`
	Warnings   []string          `json:"warnings"`
	Skipped    []SkippedRow      `json:"skipped,omitempty"`
	TextBased  int               `json:"textBased"`
	ColorBased int               `json:"colorBased"`
	NoMaterial int               `json:"noMaterial"`
}

// Correlate joins parallel depth, material and color columns. colors may be
// nil or shorter than depths.
//
// Non-blank material text always wins over color. Rows whose depth does not
// parse are dropped with a warning. Warnings number rows from 1 at
// depths[0]; use CorrelateFrom to number them as sheet rows.
func Correlate(depths, materials, colors []string) Correlation {
	return CorrelateFrom(0, depths, materials, colors)
}

// CorrelateFrom is Correlate for columns that start at the 0-based sheet row
// firstRow. Warnings and Skipped use sheet rows, matching ExtractionError.
func CorrelateFrom(firstRow int, depths, materials, colors []string) Correlation {
	var out Correlation
	skip := func(i int, reason string) {
		row := firstRow + i
		out.Skipped = append(out.Skipped, SkippedRow{Row: row, Reason: reason})
		out.Warnings = append(out.Warnings, fmt.Sprintf("row %d: %s", row+1, reason))
	}

	for i, raw := range depths {
		depth, unit, ok := ParseDepth(raw)
		if !ok {
			switch {
			case strings.TrimSpace(raw) != "":
				skip(i, fmt.Sprintf("skipped non-numeric depth %q", raw))
			case !blankRow(i, materials, colors):
				skip(i, "skipped empty depth")
			}
			continue
		}

		entry := CorrelatedEntry{Index: i, Depth: depth, DepthUnit: unit}
		if i < len(materials) {
			entry.OriginalText = materials[i]
		}
		if i < len(colors) {
			entry.OriginalColor = strings.TrimSpace(colors[i])
		}

		switch text := strings.TrimSpace(entry.OriginalText); {
		case text != "":
			entry.Material = text
			entry.Source = SourceText
			out.TextBased++
		case entry.OriginalColor != "":
			entry.Material = ColorMaterialPrefix + entry.OriginalColor
			entry.Source = SourceColor
			out.ColorBased++
		default:
			out.NoMaterial++
		}

		out.Entries = append(out.Entries, entry)
	}

	return out
}

func blankRow(i int, materials, colors []string) bool {
	if i < len(materials) && strings.TrimSpace(materials[i]) != "" {
		return false
	}
	if i < len(colors) && strings.TrimSpace(colors[i]) != "" {
		return false
	}
	return true
}
