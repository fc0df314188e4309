package core

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ColumnRole names the column a header pattern identifies.
type ColumnRole string

const (
	RoleDepth    ColumnRole = "depth"
	RoleMaterial ColumnRole = "material"
	RoleEndDepth ColumnRole = "endDepth"
)

// PatternSet holds the ordered header patterns for each column role.
// Patterns are matched against trimmed header text.
type PatternSet struct {
	Depth    []*regexp.Regexp
	Material []*regexp.Regexp
	EndDepth []*regexp.Regexp
}

var (
	defaultDepthPatterns = []string{
		`(?i)\bdepth\b`,
		`(?i)\belevation\b`,
		`(?i)^from\b`,
		`(?i)^top\b`,
		`(?i)\bdepth\s*from\b`,
		`(?i)\bmbgl\b`,
	}
	defaultMaterialPatterns = []string{
		`(?i)\bstrata\b`,
		`(?i)\bstratum\b`,
		`(?i)\bmaterials?\b`,
		`(?i)\blithology\b`,
		`(?i)\bsoil\s*(type|description)?\b`,
		`(?i)\bgeology\b`,
		`(?i)\bdescription\b`,
	}
	defaultEndDepthPatterns = []string{
		`(?i)^to\b`,
		`(?i)\bbottom\b`,
		`(?i)\bbase\b`,
		`(?i)\bend\s*depth\b`,
		`(?i)\bdepth\s*to\b`,
	}
)

// DefaultPatterns returns the built-in header synonyms.
func DefaultPatterns() PatternSet {
	return PatternSet{
		Depth:    mustCompileAll(defaultDepthPatterns),
		Material: mustCompileAll(defaultMaterialPatterns),
		EndDepth: mustCompileAll(defaultEndDepthPatterns),
	}
}

// patternFile is the YAML shape accepted by LoadPatterns.
type patternFile struct {
	Depth    []string `yaml:"depth"`
	Material []string `yaml:"material"`
	EndDepth []string `yaml:"endDepth"`
}

// LoadPatterns reads a YAML pattern file. Roles left empty keep the defaults.
//
//	depth:    ["(?i)\\bdepth\\b", "(?i)^tiefe"]
//	material: ["(?i)\\blithology\\b"]
func LoadPatterns(r io.Reader) (PatternSet, error) {
	var pf patternFile
	if err := yaml.NewDecoder(r).Decode(&pf); err != nil && err != io.EOF {
		return PatternSet{}, fmt.Errorf("decode patterns: %w", err)
	}

	set := DefaultPatterns()
	var err error
	if len(pf.Depth) > 0 {
		if set.Depth, err = compileAll(pf.Depth); err != nil {
			return PatternSet{}, fmt.Errorf("depth patterns: %w", err)
		}
	}
	if len(pf.Material) > 0 {
		if set.Material, err = compileAll(pf.Material); err != nil {
			return PatternSet{}, fmt.Errorf("material patterns: %w", err)
		}
	}
	if len(pf.EndDepth) > 0 {
		if set.EndDepth, err = compileAll(pf.EndDepth); err != nil {
			return PatternSet{}, fmt.Errorf("end depth patterns: %w", err)
		}
	}
	return set, nil
}

// LoadPatternsFile reads a pattern file from disk. An empty path returns
// the defaults.
func LoadPatternsFile(path string) (PatternSet, error) {
	if path == "" {
		return DefaultPatterns(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return PatternSet{}, fmt.Errorf("open patterns: %w", err)
	}
	defer f.Close()
	return LoadPatterns(f)
}

// MarshalYAML renders the pattern set in the LoadPatterns format.
func (p PatternSet) MarshalYAML() (any, error) {
	return patternFile{
		Depth:    sources(p.Depth),
		Material: sources(p.Material),
		EndDepth: sources(p.EndDepth),
	}, nil
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		re, err := regexp.Compile(e)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", e, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func mustCompileAll(exprs []string) []*regexp.Regexp {
	out, err := compileAll(exprs)
	if err != nil {
		panic(err)
	}
	return out
}

func sources(res []*regexp.Regexp) []string {
	out := make([]string, len(res))
	for i, re := range res {
		out[i] = re.String()
	}
	return out
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
