package core

import (
	"math"
	"testing"
)

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple string unchanged",
			input: "Clay",
			want:  "Clay",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "surrounded by whitespace",
			input: "  Sand  ",
			want:  "Sand",
		},
		{
			name:  "Excel formula with quotes",
			input: `="12.5"`,
			want:  "12.5",
		},
		{
			name:  "bare equals sign",
			input: "=SUM(A1)",
			want:  "SUM(A1)",
		},
		{
			name:  "surrounding double quotes",
			input: `"Gravel"`,
			want:  "Gravel",
		},
		{
			name:  "foot mark kept",
			input: "10'",
			want:  "10'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseNumber Tests
// ----------------------------------------------------------------------------

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		{name: "integer", input: "123", want: 123, wantOK: true},
		{name: "decimal", input: "12.75", want: 12.75, wantOK: true},
		{name: "leading decimal point", input: ".5", want: 0.5, wantOK: true},
		{name: "thousands separator", input: "1,234.5", want: 1234.5, wantOK: true},
		{name: "accounting negative", input: "(12.5)", want: -12.5, wantOK: true},
		{name: "scientific notation", input: "1e3", want: 1000, wantOK: true},
		{name: "formula wrapped", input: `="42"`, want: 42, wantOK: true},
		{name: "negative", input: "-3", want: -3, wantOK: true},
		{name: "empty", input: "", wantOK: false},
		{name: "whitespace only", input: "   ", wantOK: false},
		{name: "text", input: "Clay", wantOK: false},
		{name: "NaN literal", input: "NaN", wantOK: false},
		{name: "infinity literal", input: "Inf", wantOK: false},
		{name: "unit suffix is not a plain number", input: "12ft", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseDepth Tests
// ----------------------------------------------------------------------------

func TestParseDepth(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     float64
		wantUnit DepthUnit
		wantOK   bool
	}{
		{name: "plain number", input: "12", want: 12, wantUnit: "", wantOK: true},
		{name: "feet suffix", input: "12ft", want: 12, wantUnit: UnitFeet, wantOK: true},
		{name: "meters suffix with space", input: "3.5 m", want: 3.5, wantUnit: UnitMeters, wantOK: true},
		{name: "metres spelled out", input: "5 metres", want: 5, wantUnit: UnitMeters, wantOK: true},
		{name: "foot mark", input: "10'", want: 10, wantUnit: UnitFeet, wantOK: true},
		{name: "uppercase unit", input: "7 FT", want: 7, wantUnit: UnitFeet, wantOK: true},
		{name: "thousands with unit", input: "1,200 ft", want: 1200, wantUnit: UnitFeet, wantOK: true},
		{name: "unit only", input: "m", wantOK: false},
		{name: "text", input: "deep", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unit, ok := ParseDepth(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDepth(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got != tt.want {
				t.Errorf("ParseDepth(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if unit != tt.wantUnit {
				t.Errorf("ParseDepth(%q) unit = %q, want %q", tt.input, unit, tt.wantUnit)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 1.234, want: 1.23},
		{in: 1.235001, want: 1.24},
		{in: 16.4042, want: 16.4},
		{in: 0, want: 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDepthUnit_ToFeet(t *testing.T) {
	if got := UnitMeters.ToFeet(10); math.Abs(got-32.8084) > 1e-9 {
		t.Errorf("UnitMeters.ToFeet(10) = %v, want 32.8084", got)
	}
	if got := UnitFeet.ToFeet(10); got != 10 {
		t.Errorf("UnitFeet.ToFeet(10) = %v, want 10", got)
	}
}
