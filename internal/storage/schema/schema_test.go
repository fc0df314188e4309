package schema

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/strata/internal/core"
	"github.com/JonMunkholm/strata/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// persisted builds a record the way the Persister does.
func persisted(t *testing.T) core.PersistedRecord {
	t.Helper()
	p := core.NewPersister(memory.New(), core.WithClock(fixedClock{time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}))
	color := "#FFCC00"
	draft := core.Draft{
		Layers: []core.Layer{
			{Material: "Clay", StartDepth: 0, EndDepth: 1.5, Confidence: core.ConfidenceHigh, Source: core.SourceText},
			{Material: "color:#FFCC00", StartDepth: 1.5, EndDepth: 3, Confidence: core.ConfidenceLow, Source: core.SourceColor, OriginalColor: &color},
		},
		Metadata: core.DraftMetadata{Filename: "bh-1.xlsx", DepthUnit: core.UnitMeters, Coordinates: &core.Coordinates{Lat: 59.3, Lng: 18.1}},
	}
	rec, err := p.BuildRecord(context.Background(), core.SaveRequest{Draft: draft, Result: core.Aggregate(nil)})
	if err != nil {
		t.Fatalf("BuildRecord() error = %v", err)
	}
	return rec
}

func TestValidator_AcceptsPersistedRecord(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if res := v.ValidateRecord(persisted(t)); !res.Valid {
		t.Errorf("ValidateRecord() errors = %v, want valid", res.Errors)
	}
}

func TestValidator_Rejects(t *testing.T) {
	v := MustNew()

	tests := []struct {
		name     string
		mutate   func(*core.PersistedRecord)
		wantPath string
	}{
		{"empty bore id", func(r *core.PersistedRecord) { r.Metadata.BoreID = "" }, "/metadata/boreId"},
		{"depth beyond limit", func(r *core.PersistedRecord) { r.Metadata.StrataLayers[1].EndDepth = 20000 }, "/metadata/strataLayers/1/endDepth"},
		{"missing extraction tag", func(r *core.PersistedRecord) { r.Metadata.Tags = []string{"manual"} }, "/metadata/tags"},
		{"no layers", func(r *core.PersistedRecord) { r.Metadata.StrataLayers = []core.Layer{} }, "/metadata/strataLayers"},
		{"bad confidence", func(r *core.PersistedRecord) { r.Metadata.StrataLayers[0].Confidence = "certain" }, "/metadata/strataLayers/0/confidence"},
		{"score above one", func(r *core.PersistedRecord) { r.Metadata.ExtractionSource.ConfidenceScore = 1.5 }, "/metadata/extractionSource/confidenceScore"},
		{"bad date", func(r *core.PersistedRecord) { r.Metadata.Date = "14/03/2026" }, "/metadata/date"},
		{"nil files", func(r *core.PersistedRecord) { r.Files = nil }, "/files"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := persisted(t)
			tt.mutate(&rec)

			res := v.ValidateRecord(rec)
			if res.Valid {
				t.Fatal("ValidateRecord() valid, want errors")
			}
			found := false
			for _, e := range res.Errors {
				if strings.HasPrefix(e, tt.wantPath) {
					found = true
				}
			}
			if !found {
				t.Errorf("ValidateRecord() errors = %v, want one at %s", res.Errors, tt.wantPath)
			}
		})
	}
}

func TestValidator_WiredIntoPersister(t *testing.T) {
	store := memory.New()
	p := core.NewPersister(store, core.WithSchemaValidator(MustNew()))
	draft := core.Draft{
		Layers:   []core.Layer{{Material: "sand", StartDepth: 0, EndDepth: 2, Confidence: core.ConfidenceHigh, Source: core.SourceText}},
		Metadata: core.DraftMetadata{Filename: "a.csv", DepthUnit: core.UnitFeet},
	}
	rec, err := p.Persist(context.Background(), draft, core.Aggregate(nil))
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if _, err := store.Get(context.Background(), core.DefaultCollection, rec.ID); err != nil {
		t.Errorf("Get() error = %v", err)
	}
}
