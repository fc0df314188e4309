package core

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeMaterial(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"lower cases", "Sandy CLAY", "sandy clay", false},
		{"collapses whitespace", "  silty\t\tsand \n with gravel ", "silty sand with gravel", false},
		{"keeps allowed punctuation", "Clay (stiff), w/ sand & gravel: #2", "clay (stiff), w/ sand & gravel: #2", false},
		{"drops other symbols", "Rock!!! <script>", "rock script", false},
		{"full width folded", "ＣＬＡＹ", "clay", false},
		{"accents kept", "Argile Brûlée", "argile brûlée", false},
		{"only symbols", "!!! ??", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeMaterial(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SanitizeMaterial(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SanitizeMaterial(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeMaterial_Truncates(t *testing.T) {
	got, err := SanitizeMaterial(strings.Repeat("é", MaxMaterialLength+20))
	if err != nil {
		t.Fatalf("SanitizeMaterial() error = %v", err)
	}
	if n := utf8.RuneCountInString(got); n != MaxMaterialLength {
		t.Errorf("rune count = %d, want %d", n, MaxMaterialLength)
	}

	got, _ = SanitizeMaterial(strings.Repeat("a", MaxMaterialLength-1) + " bcd")
	if strings.HasSuffix(got, " ") {
		t.Errorf("SanitizeMaterial() = %q, want no trailing space", got)
	}
}

func TestSanitizeMaterial_Idempotent(t *testing.T) {
	for _, in := range []string{"Sandy CLAY", "Clay (stiff), w/ sand", "ＣＬＡＹ  ！", "gravel"} {
		once, err := SanitizeMaterial(in)
		if err != nil {
			t.Fatalf("SanitizeMaterial(%q) error = %v", in, err)
		}
		twice, err := SanitizeMaterial(once)
		if err != nil || twice != once {
			t.Errorf("SanitizeMaterial(%q) = %q, not stable (got %q, %v)", once, once, twice, err)
		}
	}
}
