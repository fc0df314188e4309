package core

import (
	"strings"
	"time"
)

// DepthUnit is the unit a depth value is expressed in.
type DepthUnit string

const (
	UnitFeet   DepthUnit = "feet"
	UnitMeters DepthUnit = "meters"
)

// FeetPerMeter converts meters to the canonical unit.
const FeetPerMeter = 3.28084

// ToFeet converts v from u to feet. Unknown units are treated as feet.
func (u DepthUnit) ToFeet(v float64) float64 {
	if u == UnitMeters {
		return v * FeetPerMeter
	}
	return v
}

// ParseDepthUnit maps free-form unit text to a DepthUnit.
func ParseDepthUnit(s string) (DepthUnit, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "meter", "meters", "metre", "metres":
		return UnitMeters, true
	case "ft", "feet", "foot", "'":
		return UnitFeet, true
	default:
		return "", false
	}
}

// Confidence is the trust level attached to a layer.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// rank orders confidence levels so they can be capped.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// Cap returns the lower of c and max.
func (c Confidence) Cap(max Confidence) Confidence {
	if c.rank() > max.rank() {
		return max
	}
	return c
}

// Source is the provenance of a layer's material identification.
type Source string

const (
	SourceText        Source = "text"
	SourceColor       Source = "color"
	SourceExcelImport Source = "excel-import"
	SourcePDFImport   Source = "pdf-import"
)

// UnidentifiedMaterial is the placeholder for rows with neither text nor color.
const UnidentifiedMaterial = "unidentified"

// Layer is one depth interval of a single material.
type Layer struct {
	Material      string     `json:"material" yaml:"material"`
	StartDepth    float64    `json:"startDepth" yaml:"startDepth"`
	EndDepth      float64    `json:"endDepth" yaml:"endDepth"`
	Confidence    Confidence `json:"confidence" yaml:"confidence"`
	Source        Source     `json:"source" yaml:"source"`
	UserEdited    bool       `json:"userEdited" yaml:"userEdited"`
	OriginalColor *string    `json:"originalColor" yaml:"originalColor,omitempty"`
}

// Thickness returns EndDepth - StartDepth.
func (l Layer) Thickness() float64 {
	return l.EndDepth - l.StartDepth
}

// Coordinates locates a bore.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// DraftMetadata describes where a draft came from.
type DraftMetadata struct {
	Filename            string       `json:"filename" yaml:"filename"`
	Project             string       `json:"project,omitempty" yaml:"project,omitempty"`
	BoreID              string       `json:"boreId,omitempty" yaml:"boreId,omitempty"`
	DepthUnit           DepthUnit    `json:"depthUnit" yaml:"depthUnit"`
	TotalDepth          *float64     `json:"totalDepth,omitempty" yaml:"totalDepth,omitempty"`
	WaterLevel          *float64     `json:"waterLevel,omitempty" yaml:"waterLevel,omitempty"`
	Coordinates         *Coordinates `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	Notes               string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	Method              Source       `json:"method" yaml:"method"`
	ExtractionTimestamp time.Time    `json:"extractionTimestamp" yaml:"extractionTimestamp"`
}

// Draft is the working set of layers produced by one extraction.
// It is owned by a single ReviewModel and is never partially persisted.
type Draft struct {
	Layers   []Layer       `json:"layers" yaml:"layers"`
	Metadata DraftMetadata `json:"metadata" yaml:"metadata"`
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	out := Draft{Metadata: d.Metadata, Layers: cloneLayers(d.Layers)}
	if d.Metadata.TotalDepth != nil {
		v := *d.Metadata.TotalDepth
		out.Metadata.TotalDepth = &v
	}
	if d.Metadata.WaterLevel != nil {
		v := *d.Metadata.WaterLevel
		out.Metadata.WaterLevel = &v
	}
	if d.Metadata.Coordinates != nil {
		c := *d.Metadata.Coordinates
		out.Metadata.Coordinates = &c
	}
	return out
}

func cloneLayers(layers []Layer) []Layer {
	out := make([]Layer, len(layers))
	for i, l := range layers {
		out[i] = l
		if l.OriginalColor != nil {
			c := *l.OriginalColor
			out[i].OriginalColor = &c
		}
	}
	return out
}

// CellStyle carries the presentation attributes the detector cares about.
type CellStyle struct {
	FillColor string
}

// Cell is a single value of a decoded sheet.
type Cell struct {
	Value string
	Style *CellStyle
}

// Grid is a decoded sheet: rows of cells, possibly ragged.
type Grid [][]Cell

// GridFromRows builds an unstyled grid from plain string rows.
func GridFromRows(rows [][]string) Grid {
	g := make(Grid, len(rows))
	for i, row := range rows {
		g[i] = make([]Cell, len(row))
		for j, v := range row {
			g[i][j] = Cell{Value: v}
		}
	}
	return g
}

// Text returns the cell value at (row, col) or "" when out of range.
func (g Grid) Text(row, col int) string {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return ""
	}
	return g[row][col].Value
}

// Color returns the fill color at (row, col) or "" when absent.
func (g Grid) Color(row, col int) string {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return ""
	}
	if s := g[row][col].Style; s != nil {
		return strings.TrimSpace(s.FillColor)
	}
	return ""
}

// Width returns the length of the longest row.
func (g Grid) Width() int {
	w := 0
	for _, row := range g {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// Column returns the text of column col for rows [from, len).
func (g Grid) Column(col, from int) []string {
	if from < 0 {
		from = 0
	}
	var out []string
	for r := from; r < len(g); r++ {
		out = append(out, g.Text(r, col))
	}
	return out
}

// ColorColumn returns the fill colors of column col for rows [from, len).
func (g Grid) ColorColumn(col, from int) []string {
	if from < 0 {
		from = 0
	}
	var out []string
	for r := from; r < len(g); r++ {
		out = append(out, g.Color(r, col))
	}
	return out
}
