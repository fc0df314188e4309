package core

import (
	"math"
	"math/rand"
	"strings"
	"testing"
)

func layer(material string, start, end float64) Layer {
	return Layer{Material: material, StartDepth: start, EndDepth: end, Confidence: ConfidenceHigh, Source: SourceText}
}

func TestValidateUserEdits(t *testing.T) {
	tests := []struct {
		name         string
		layers       []Layer
		wantValid    bool
		wantErrors   int
		wantWarnings int
		wantContains string
	}{
		{
			name:      "contiguous layers",
			layers:    []Layer{layer("Clay", 0, 5), layer("Sand", 5, 10)},
			wantValid: true,
		},
		{
			name:         "gap is a warning",
			layers:       []Layer{layer("Clay", 0, 5), layer("Sand", 6, 10)},
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name:         "empty list",
			layers:       nil,
			wantErrors:   1,
			wantContains: "at least one layer",
		},
		{
			name:         "blank material",
			layers:       []Layer{layer("  ", 0, 5)},
			wantErrors:   1,
			wantContains: "material is required",
		},
		{
			name:         "start not below end",
			layers:       []Layer{layer("Clay", 5, 5)},
			wantErrors:   1,
			wantContains: "less than end",
		},
		{
			name:         "negative depth",
			layers:       []Layer{layer("Clay", -1, 5)},
			wantErrors:   1,
			wantContains: "negative",
		},
		{
			name:         "NaN depth",
			layers:       []Layer{layer("Clay", math.NaN(), 5)},
			wantErrors:   1,
			wantContains: "finite",
		},
		{
			name:         "infinite depth",
			layers:       []Layer{layer("Clay", 0, math.Inf(1))},
			wantErrors:   1,
			wantContains: "finite",
		},
		{
			name:         "every overlapping pair reported",
			layers:       []Layer{layer("A", 0, 10), layer("B", 2, 4), layer("C", 3, 8)},
			wantErrors:   3,
			wantContains: "overlaps",
		},
		{
			name:      "unsorted but disjoint",
			layers:    []Layer{layer("B", 5, 10), layer("A", 0, 5)},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateUserEdits(tt.layers)
			if got.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (errors: %v)", got.Valid, tt.wantValid, got.Errors)
			}
			if len(got.Errors) != tt.wantErrors {
				t.Errorf("len(Errors) = %d, want %d: %v", len(got.Errors), tt.wantErrors, got.Errors)
			}
			if len(got.Warnings) != tt.wantWarnings {
				t.Errorf("len(Warnings) = %d, want %d: %v", len(got.Warnings), tt.wantWarnings, got.Warnings)
			}
			if tt.wantContains != "" && (len(got.Errors) == 0 || !strings.Contains(got.Errors[0].Error(), tt.wantContains)) {
				t.Errorf("Errors = %v, want one containing %q", got.Errors, tt.wantContains)
			}
		})
	}
}

// Any list that validates has no overlapping pair.
func TestValidateUserEdits_NoOverlapWhenValid(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 500; trial++ {
		n := 1 + rng.Intn(6)
		layers := make([]Layer, n)
		for i := range layers {
			start := float64(rng.Intn(20))
			layers[i] = layer("m", start, start+float64(1+rng.Intn(6)))
		}

		if !ValidateUserEdits(layers).Valid {
			continue
		}
		for i := range layers {
			for j := range layers {
				if i == j {
					continue
				}
				a, b := layers[i], layers[j]
				if !(a.EndDepth <= b.StartDepth || b.EndDepth <= a.StartDepth) {
					t.Fatalf("valid list %v has overlapping layers %d and %d", layers, i, j)
				}
			}
		}
	}
}
