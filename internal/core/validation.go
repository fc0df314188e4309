package core

// validation.go checks a reviewed layer list before it may be saved.
//
// Validation reports everything at once so the reviewer sees every problem:
//  1. Per-layer checks: material present, depths finite, non-negative, ordered
//  2. Pairwise checks: every overlapping pair is its own error
//  3. Gaps between neighbouring layers are warnings and never block a save

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// ValidationError represents a single validation problem for a layer.
type ValidationError struct {
	Index   int    `json:"index"`   // layer index, -1 for list-level problems
	Field   string `json:"field"`   // "material", "startDepth", "endDepth", "depths"
	Value   string `json:"value"`   // the offending value, if any
	Message string `json:"message"` // human-readable message
}

func (e ValidationError) Error() string {
	switch {
	case e.Index >= 0 && e.Field != "":
		return fmt.Sprintf("layer %d %s: %s", e.Index+1, e.Field, e.Message)
	case e.Index >= 0:
		return fmt.Sprintf("layer %d: %s", e.Index+1, e.Message)
	default:
		return e.Message
	}
}

// ValidationResult contains the result of validating a layer list.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

// ValidateUserEdits checks the structural invariants of a layer list.
func ValidateUserEdits(layers []Layer) ValidationResult {
	result := ValidationResult{Valid: true}
	fail := func(ve ValidationError) {
		result.Valid = false
		result.Errors = append(result.Errors, ve)
	}

	if len(layers) == 0 {
		fail(ValidationError{Index: -1, Message: "at least one layer is required"})
		return result
	}

	usable := make([]bool, len(layers))
	for i, l := range layers {
		if strings.TrimSpace(l.Material) == "" {
			fail(ValidationError{Index: i, Field: "material", Message: "material is required"})
		}

		ok := true
		for _, d := range []struct {
			field string
			v     float64
		}{{"startDepth", l.StartDepth}, {"endDepth", l.EndDepth}} {
			switch {
			case !isFinite(d.v):
				fail(ValidationError{Index: i, Field: d.field, Value: fmt.Sprint(d.v), Message: "depth must be a finite number"})
				ok = false
			case d.v < 0:
				fail(ValidationError{Index: i, Field: d.field, Value: formatDepth(d.v), Message: "depth must not be negative"})
				ok = false
			}
		}
		if ok && l.StartDepth >= l.EndDepth {
			fail(ValidationError{
				Index:   i,
				Field:   "depths",
				Value:   fmt.Sprintf("%s-%s", formatDepth(l.StartDepth), formatDepth(l.EndDepth)),
				Message: "start depth must be less than end depth",
			})
			ok = false
		}
		usable[i] = ok
	}

	for i := 0; i < len(layers); i++ {
		for j := i + 1; j < len(layers); j++ {
			if !usable[i] || !usable[j] {
				continue
			}
			if overlaps(layers[i], layers[j]) {
				fail(ValidationError{
					Index:   i,
					Field:   "depths",
					Message: fmt.Sprintf("overlaps layer %d (%s-%s)", j+1, formatDepth(layers[j].StartDepth), formatDepth(layers[j].EndDepth)),
				})
			}
		}
	}

	order := make([]int, 0, len(layers))
	for i := range layers {
		if usable[i] {
			order = append(order, i)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case layers[a].StartDepth < layers[b].StartDepth:
			return -1
		case layers[a].StartDepth > layers[b].StartDepth:
			return 1
		default:
			return 0
		}
	})
	for k := 1; k < len(order); k++ {
		prev, next := layers[order[k-1]], layers[order[k]]
		if next.StartDepth > prev.EndDepth {
			result.Warnings = append(result.Warnings, ValidationError{
				Index:   order[k],
				Field:   "startDepth",
				Message: fmt.Sprintf("gap from %s to %s", formatDepth(prev.EndDepth), formatDepth(next.StartDepth)),
			})
		}
	}

	return result
}

// overlaps reports whether two intervals share any depth.
func overlaps(a, b Layer) bool {
	return !(a.EndDepth <= b.StartDepth || b.EndDepth <= a.StartDepth)
}

func formatDepth(v float64) string {
	if math.Trunc(v) == v {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
