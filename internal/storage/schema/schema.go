// Package schema checks records against the stored bore JSON Schema before
// they are written.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/JonMunkholm/strata/internal/core"
)

//go:embed record.schema.json
var recordSchema []byte

const schemaURL = "https://strata.local/schemas/record.json"

// Validator implements core.SchemaValidator.
type Validator struct {
	schema *jsonschema.Schema
}

// New compiles the embedded record schema.
func New() (*Validator, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(recordSchema)); err != nil {
		return nil, fmt.Errorf("load record schema: %w", err)
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// MustNew is New for package-level initialization.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateRecord reports every leaf violation as "<instance path>: <message>".
func (v *Validator) ValidateRecord(rec core.PersistedRecord) core.SchemaResult {
	doc, err := toDocument(rec)
	if err != nil {
		return core.SchemaResult{Errors: []string{err.Error()}}
	}

	err = v.schema.Validate(doc)
	if err == nil {
		return core.SchemaResult{Valid: true}
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return core.SchemaResult{Errors: []string{err.Error()}}
	}
	var msgs []string
	collectLeaves(ve, &msgs)
	sort.Strings(msgs)
	return core.SchemaResult{Errors: msgs}
}

func toDocument(rec core.PersistedRecord) (any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return doc, nil
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, loc+": "+ve.Message)
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}
