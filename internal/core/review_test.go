package core

import (
	"context"
	"errors"
	"math"
	"testing"
)

func cleanResult() ProcessedResult {
	return Aggregate(nil)
}

func reviewResult() ProcessedResult {
	return Aggregate([]SemanticError{ClassifyKind(KindConfidenceTooLow, "color only")})
}

func newTestReview(t *testing.T, layers []Layer, result ProcessedResult, saver Saver) *ReviewModel {
	t.Helper()
	draft := Draft{
		Layers:   layers,
		Metadata: DraftMetadata{Filename: "bh.xlsx", BoreID: "BH-1", Project: "p1", DepthUnit: UnitFeet, Method: SourceExcelImport},
	}
	m, err := NewReviewModel(draft, result, saver, WithReviewClock(fixedClock{testNow}))
	if err != nil {
		t.Fatalf("NewReviewModel() error = %v", err)
	}
	return m
}

func threeLayers() []Layer {
	return []Layer{
		{Material: "Clay", StartDepth: 0, EndDepth: 5, Confidence: ConfidenceLow, Source: SourceColor},
		{Material: "Sand", StartDepth: 5, EndDepth: 10, Confidence: ConfidenceMedium, Source: SourceText},
		{Material: "Gravel", StartDepth: 10, EndDepth: 15, Confidence: ConfidenceHigh, Source: SourceText},
	}
}

func TestNewReviewModel_Refuses(t *testing.T) {
	fatal := Aggregate([]SemanticError{ClassifyKind(KindFileCorrupted, "bad zip")})
	if _, err := NewReviewModel(Draft{}, fatal, nil); err == nil {
		t.Error("NewReviewModel(fatal) error = nil")
	} else if _, ok := AsFatal(err); !ok {
		t.Errorf("NewReviewModel(fatal) error = %v, want *FatalError", err)
	}

	broken := reviewResult()
	broken.MustForceReview = false
	if _, err := NewReviewModel(Draft{}, broken, nil); !errors.Is(err, ErrInternalConsistency) {
		t.Errorf("NewReviewModel(broken gate) error = %v, want ErrInternalConsistency", err)
	}
}

func TestReviewModel_UpdateMaterial(t *testing.T) {
	m := newTestReview(t, threeLayers(), cleanResult(), nil)

	if err := m.UpdateMaterial(0, "  Silty clay "); err != nil {
		t.Fatalf("UpdateMaterial() error = %v", err)
	}
	l := m.Layers()[0]
	if l.Material != "Silty clay" || l.Confidence != ConfidenceHigh || !l.UserEdited {
		t.Errorf("Layers[0] = %+v, want edited high-confidence Silty clay", l)
	}
	if m.State() != StateEditing {
		t.Errorf("State() = %q, want editing", m.State())
	}

	var ee *EditError
	if err := m.UpdateMaterial(1, "   "); !errors.As(err, &ee) {
		t.Errorf("UpdateMaterial(blank) error = %v, want *EditError", err)
	}
	if err := m.UpdateMaterial(7, "x"); !errors.As(err, &ee) {
		t.Errorf("UpdateMaterial(out of range) error = %v, want *EditError", err)
	}
	if got := m.Layers()[1].Material; got != "Sand" {
		t.Errorf("failed edit changed material to %q", got)
	}

	edits := m.Edits()
	if len(edits) != 1 || edits[0].Action != EditMaterial || edits[0].Old != "Clay" || !edits[0].At.Equal(testNow) {
		t.Errorf("Edits() = %+v, want one material_edit from Clay", edits)
	}
}

func TestReviewModel_UpdateDepths(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		wantErr    bool
	}{
		{"valid", 0, 4, false},
		{"start equals end", 3, 3, true},
		{"start above end", 5, 2, true},
		{"NaN", math.NaN(), 2, true},
		{"infinite", 0, math.Inf(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestReview(t, threeLayers(), cleanResult(), nil)
			err := m.UpdateDepths(0, tt.start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UpdateDepths(%v, %v) error = %v, wantErr %v", tt.start, tt.end, err, tt.wantErr)
			}
			l := m.Layers()[0]
			if tt.wantErr {
				if l.StartDepth != 0 || l.EndDepth != 5 || l.UserEdited {
					t.Errorf("failed edit changed layer to %+v", l)
				}
				return
			}
			if l.StartDepth != tt.start || l.EndDepth != tt.end || l.Confidence != ConfidenceHigh || !l.UserEdited {
				t.Errorf("Layers[0] = %+v", l)
			}
		})
	}
}

func TestReviewModel_MergeLayers(t *testing.T) {
	m := newTestReview(t, threeLayers(), cleanResult(), nil)

	if err := m.MergeLayers(0, 2); err == nil {
		t.Error("MergeLayers(0, 2) error = nil, want non-adjacent error")
	}
	if err := m.MergeLayers(2, 1); err != nil {
		t.Fatalf("MergeLayers(2, 1) error = %v", err)
	}

	layers := m.Layers()
	if len(layers) != 2 {
		t.Fatalf("len(Layers) = %d, want 2", len(layers))
	}
	merged := layers[1]
	if merged.Material != "Sand" || merged.StartDepth != 5 || merged.EndDepth != 15 {
		t.Errorf("merged = %+v, want Sand 5-15", merged)
	}
	if merged.Confidence != ConfidenceHigh || !merged.UserEdited {
		t.Errorf("merged confidence = %s edited=%v", merged.Confidence, merged.UserEdited)
	}
}

func TestReviewModel_SplitLayer(t *testing.T) {
	m := newTestReview(t, threeLayers(), cleanResult(), nil)

	for _, d := range []float64{0, 5, -1, math.NaN()} {
		if err := m.SplitLayer(0, d); err == nil {
			t.Errorf("SplitLayer(0, %v) error = nil", d)
		}
	}
	if err := m.SplitLayer(0, 2); err != nil {
		t.Fatalf("SplitLayer(0, 2) error = %v", err)
	}

	layers := m.Layers()
	if len(layers) != 4 {
		t.Fatalf("len(Layers) = %d, want 4", len(layers))
	}
	if layers[0].EndDepth != 2 || layers[1].StartDepth != 2 || layers[1].EndDepth != 5 {
		t.Errorf("split = %v-%v, %v-%v", layers[0].StartDepth, layers[0].EndDepth, layers[1].StartDepth, layers[1].EndDepth)
	}
	for i := 0; i < 2; i++ {
		if layers[i].Confidence != ConfidenceHigh || layers[i].Material != "Clay" {
			t.Errorf("Layers[%d] = %+v, want high-confidence Clay", i, layers[i])
		}
	}
}

// Splitting then merging the halves restores the original bounds.
func TestReviewModel_SplitMergeInverse(t *testing.T) {
	for i, orig := range threeLayers() {
		for _, frac := range []float64{0.1, 0.5, 0.9} {
			m := newTestReview(t, threeLayers(), cleanResult(), nil)
			d := orig.StartDepth + frac*(orig.EndDepth-orig.StartDepth)

			if err := m.SplitLayer(i, d); err != nil {
				t.Fatalf("SplitLayer(%d, %v) error = %v", i, d, err)
			}
			if err := m.UpdateMaterial(i+1, "other"); err != nil {
				t.Fatalf("UpdateMaterial() error = %v", err)
			}
			if err := m.MergeLayers(i, i+1); err != nil {
				t.Fatalf("MergeLayers(%d, %d) error = %v", i, i+1, err)
			}

			got := m.Layers()
			if len(got) != 3 {
				t.Fatalf("len(Layers) = %d, want 3", len(got))
			}
			if got[i].StartDepth != orig.StartDepth || got[i].EndDepth != orig.EndDepth {
				t.Errorf("layer %d bounds = %v-%v, want %v-%v", i, got[i].StartDepth, got[i].EndDepth, orig.StartDepth, orig.EndDepth)
			}
			if got[i].Material != orig.Material {
				t.Errorf("layer %d material = %q, want %q", i, got[i].Material, orig.Material)
			}
		}
	}
}

func TestReviewModel_DeleteLayer(t *testing.T) {
	m := newTestReview(t, threeLayers(), cleanResult(), nil)
	if err := m.DeleteLayer(1); err != nil {
		t.Fatalf("DeleteLayer(1) error = %v", err)
	}
	if got := m.Layers(); len(got) != 2 || got[1].Material != "Gravel" {
		t.Errorf("Layers() = %+v", got)
	}
	if err := m.DeleteLayer(5); err == nil {
		t.Error("DeleteLayer(5) error = nil")
	}
	if v := m.Validate(); !v.Valid || len(v.Warnings) != 1 {
		t.Errorf("Validate() = %+v, want valid with one gap warning", v)
	}
}

func TestReviewModel_ConfirmAndSave(t *testing.T) {
	ctx := context.Background()

	t.Run("forced review needs acknowledgement", func(t *testing.T) {
		store := newMemStore()
		m := newTestReview(t, threeLayers(), reviewResult(), newTestPersister(store))

		if _, err := m.ConfirmAndSave(ctx); !errors.Is(err, ErrReviewNotAcknowledged) {
			t.Fatalf("ConfirmAndSave() error = %v, want ErrReviewNotAcknowledged", err)
		}
		if m.State() != StateEditing || store.count(DefaultCollection) != 0 {
			t.Fatalf("state = %q, stored = %d, want editing and nothing stored", m.State(), store.count(DefaultCollection))
		}

		if err := m.AcknowledgeReview(); err != nil {
			t.Fatalf("AcknowledgeReview() error = %v", err)
		}
		rec, err := m.ConfirmAndSave(ctx)
		if err != nil {
			t.Fatalf("ConfirmAndSave() after ack error = %v", err)
		}
		if !rec.Metadata.ExtractionSource.ReviewForced {
			t.Error("ExtractionSource.ReviewForced = false, want true")
		}
		if saved, ok := m.Saved(); !ok || saved.ID != rec.ID {
			t.Errorf("Saved() = %v, %v", saved.ID, ok)
		}
	})

	t.Run("validation failure keeps edits", func(t *testing.T) {
		store := newMemStore()
		m := newTestReview(t, threeLayers(), cleanResult(), newTestPersister(store))
		if err := m.UpdateDepths(1, 4, 10); err != nil {
			t.Fatalf("UpdateDepths() error = %v", err)
		}

		_, err := m.ConfirmAndSave(ctx)
		var vfe *ValidationFailedError
		if !errors.As(err, &vfe) {
			t.Fatalf("ConfirmAndSave() error = %v, want *ValidationFailedError", err)
		}
		if m.State() != StateEditing || m.Layers()[1].StartDepth != 4 {
			t.Errorf("state = %q, layer start = %v, want editing with edit kept", m.State(), m.Layers()[1].StartDepth)
		}
		if store.count(DefaultCollection) != 0 {
			t.Error("invalid draft was stored")
		}
	})

	t.Run("storage failure keeps edits", func(t *testing.T) {
		store := newMemStore()
		store.err = errors.New("connection refused")
		m := newTestReview(t, threeLayers(), cleanResult(), newTestPersister(store))
		if err := m.UpdateMaterial(0, "Peat"); err != nil {
			t.Fatal(err)
		}

		_, err := m.ConfirmAndSave(ctx)
		if err == nil || MapError(err).Code != "SAV002" {
			t.Fatalf("ConfirmAndSave() error = %v, want SAV002", err)
		}
		if m.State() != StateEditing || len(m.Edits()) != 1 {
			t.Errorf("state = %q, edits = %d", m.State(), len(m.Edits()))
		}

		store.err = nil
		rec, err := m.ConfirmAndSave(ctx)
		if err != nil {
			t.Fatalf("retry error = %v", err)
		}
		if rec.Metadata.ExtractionSource.EditCount != 1 {
			t.Errorf("EditCount = %d, want 1", rec.Metadata.ExtractionSource.EditCount)
		}
	})

	t.Run("closed after save", func(t *testing.T) {
		m := newTestReview(t, threeLayers(), cleanResult(), newTestPersister(newMemStore()))
		if _, err := m.ConfirmAndSave(ctx); err != nil {
			t.Fatal(err)
		}
		if err := m.UpdateMaterial(0, "x"); !errors.Is(err, ErrSessionClosed) {
			t.Errorf("UpdateMaterial() after save = %v, want ErrSessionClosed", err)
		}
		if _, err := m.ConfirmAndSave(ctx); !errors.Is(err, ErrSessionClosed) {
			t.Errorf("second ConfirmAndSave() = %v, want ErrSessionClosed", err)
		}
	})
}

func TestReviewModel_Cancel(t *testing.T) {
	store := newMemStore()
	m := newTestReview(t, threeLayers(), cleanResult(), newTestPersister(store))
	if err := m.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if m.State() != StateRejected {
		t.Errorf("State() = %q, want rejected", m.State())
	}
	if err := m.SplitLayer(0, 1); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SplitLayer() after cancel = %v, want ErrSessionClosed", err)
	}
	if err := m.Cancel(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second Cancel() = %v, want ErrSessionClosed", err)
	}
	if store.count(DefaultCollection) != 0 {
		t.Error("cancelled draft was stored")
	}
}

func TestReviewModel_DraftIsOwned(t *testing.T) {
	layers := threeLayers()
	m := newTestReview(t, layers, cleanResult(), nil)
	layers[0].Material = "mutated"

	got := m.Layers()
	if got[0].Material != "Clay" {
		t.Errorf("caller mutation leaked into model: %q", got[0].Material)
	}
	got[1].Material = "mutated"
	if m.Layers()[1].Material != "Sand" {
		t.Error("Layers() returned shared storage")
	}
}
