package core

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxMaterialLength is the longest material name that is stored, in runes.
const MaxMaterialLength = 100

// materialPunctuation lists the non-alphanumeric characters kept in materials.
const materialPunctuation = "-_,.'/()&+:#"

var errEmptyMaterial = errors.New("material is empty after sanitization")

// SanitizeMaterial returns the canonical stored form of a material name:
// NFKC folded, restricted to letters, digits, spaces and a few punctuation
// marks, whitespace collapsed, at most MaxMaterialLength runes, lower case.
func SanitizeMaterial(s string) (string, error) {
	s = norm.NFKC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case strings.ContainsRune(materialPunctuation, r):
			b.WriteRune(r)
		}
	}

	out := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(out); len(runes) > MaxMaterialLength {
		out = strings.TrimSpace(string(runes[:MaxMaterialLength]))
	}
	if out == "" {
		return "", errEmptyMaterial
	}
	return out, nil
}
