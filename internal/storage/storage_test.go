package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/strata/internal/core"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"memory", Options{Driver: "memory"}, ""},
		{"default is memory", Options{}, ""},
		{"sqlite", Options{Driver: "SQLite", Path: filepath.Join(t.TempDir(), "s.db")}, ""},
		{"sqlite without path", Options{Driver: "sqlite"}, "path is required"},
		{"postgres without url", Options{Driver: "postgres"}, "requires a database URL"},
		{"unknown", Options{Driver: "mongo"}, "unknown storage driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.opts)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Open() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer s.Close()
			if err := s.Ping(ctx); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
		})
	}
}

// Every store honors the same Put/Get contract.
func TestStores_Contract(t *testing.T) {
	ctx := context.Background()
	for _, opts := range []Options{
		{Driver: DriverMemory},
		{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "c.db")},
	} {
		t.Run(opts.Driver, func(t *testing.T) {
			s, err := Open(ctx, opts)
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()

			rec := core.PersistedRecord{
				ID:       "bore_1",
				Files:    []string{},
				Metadata: core.RecordMetadata{BoreID: "BH", CreatedAt: "2026-03-14T09:30:00Z", CreatedBy: "u"},
			}
			if err := s.Put(ctx, "bores", rec); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := s.Put(ctx, "bores", rec); err == nil {
				t.Error("duplicate Put() error = nil")
			}
			if got, err := s.Get(ctx, "bores", "bore_1"); err != nil || got.Metadata.BoreID != "BH" {
				t.Errorf("Get() = %+v, %v", got, err)
			}
			if _, err := s.Get(ctx, "bores", "other"); !errors.Is(err, core.ErrRecordNotFound) {
				t.Errorf("Get(other) error = %v, want ErrRecordNotFound", err)
			}
			list, err := s.List(ctx, "bores", 0)
			if err != nil || len(list) != 1 {
				t.Errorf("List() = %d, %v; want 1", len(list), err)
			}
		})
	}
}
