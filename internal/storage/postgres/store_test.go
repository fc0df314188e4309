package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/strata/internal/core"
)

// openTestStore connects to STRATA_TEST_DATABASE_URL or skips.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("STRATA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("STRATA_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, url, PoolConfig{MaxConns: 2}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(id string) core.PersistedRecord {
	return core.PersistedRecord{
		ID:       id,
		Project:  "p1",
		Filename: "bh.xlsx",
		Files:    []string{},
		Metadata: core.RecordMetadata{
			BoreID:       "BH-1",
			Date:         "2026-03-14",
			Tags:         []string{core.TagStrataExtraction},
			CreatedAt:    "2026-03-14T09:30:00Z",
			CreatedBy:    "u1",
			StrataLayers: []core.Layer{{Material: "clay", StartDepth: 0, EndDepth: 5, Confidence: core.ConfidenceHigh, Source: core.SourceText}},
		},
	}
}

func TestStore_PutGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	collection := "test_" + uuid.NewString()
	rec := testRecord("bore_1")

	if err := s.Put(ctx, collection, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := s.Get(ctx, collection, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Metadata.BoreID != "BH-1" || len(got.Metadata.StrataLayers) != 1 {
		t.Errorf("Get() = %+v", got)
	}

	if err := s.Put(ctx, collection, rec); err == nil || core.MapError(err).Code != "SAV001" {
		t.Errorf("duplicate Put() error = %v, want SAV001", err)
	}

	list, err := s.List(ctx, collection, 10)
	if err != nil || len(list) != 1 {
		t.Errorf("List() = %d records, %v; want 1", len(list), err)
	}

	if _, err := s.Get(ctx, collection, "missing"); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrRecordNotFound", err)
	}
}

func TestAuditReason(t *testing.T) {
	rec := testRecord("bore_2")
	rec.Metadata.StrataSummary.LayerCount = 3
	rec.Metadata.ExtractionSource = core.ExtractionSource{Filename: "bh.xlsx", EditCount: 2, ConfidenceScore: 0.7}

	want := "Imported bh.xlsx: 3 layers, 2 edits, confidence 0.70"
	if got := auditReason(rec); got != want {
		t.Errorf("auditReason() = %q, want %q", got, want)
	}
}
