package core

// convert.go coerces raw spreadsheet cells into depths and text.
//
// These functions handle the messy reality of survey sheets:
//   - Excel formula prefixes (="value") and stray quotes
//   - Thousands separators and accounting negatives
//   - Unit suffixes glued to the number ("12ft", "3.5 m", "10'")
//
// Parse* functions report ok=false for empty or invalid input instead of
// guessing a value.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// depthSuffixRegex splits a trailing unit from a depth value.
var depthSuffixRegex = regexp.MustCompile(`(?i)^(.*?\d\.?)\s*(m|meters?|metres?|ft|feet|foot|')$`)

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"`))
}

// ParseNumber converts a cell to a float64.
// Handles thousands separators and accounting format (parentheses for negative).
func ParseNumber(s string) (float64, bool) {
	s = CleanCell(s)
	if s == "" {
		return 0, false
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// IsNumeric reports whether s parses as a number.
func IsNumeric(s string) bool {
	_, ok := ParseNumber(s)
	return ok
}

// ParseDepth converts a depth cell, accepting an optional unit suffix.
// unit is empty when the cell carried no suffix.
func ParseDepth(s string) (value float64, unit DepthUnit, ok bool) {
	s = CleanCell(s)
	if v, ok := ParseNumber(s); ok {
		return v, "", true
	}

	m := depthSuffixRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	v, ok := ParseNumber(m[1])
	if !ok {
		return 0, "", false
	}
	u, _ := ParseDepthUnit(m[2])
	return v, u, true
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// isFinite reports whether v is neither NaN nor infinite.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
