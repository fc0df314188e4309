// Package memory is an in-process record store for tests and the CLI's
// dry runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/JonMunkholm/strata/internal/core"
)

// Store keeps records per collection in maps guarded by a mutex.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]core.PersistedRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{collections: make(map[string]map[string]core.PersistedRecord)}
}

// Put stores rec. An existing id in the same collection is rejected.
func (s *Store) Put(ctx context.Context, collection string, rec core.PersistedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("record id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		c = make(map[string]core.PersistedRecord)
		s.collections[collection] = c
	}
	if _, exists := c[rec.ID]; exists {
		return fmt.Errorf("duplicate key: %s/%s", collection, rec.ID)
	}
	c[rec.ID] = clone(rec)
	return nil
}

// Get returns the record with id, or core.ErrRecordNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (core.PersistedRecord, error) {
	if err := ctx.Err(); err != nil {
		return core.PersistedRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[collection][id]
	if !ok {
		return core.PersistedRecord{}, fmt.Errorf("%w: %s/%s", core.ErrRecordNotFound, collection, id)
	}
	return clone(rec), nil
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, collection string, limit int) ([]core.PersistedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]core.PersistedRecord, 0, len(s.collections[collection]))
	for _, rec := range s.collections[collection] {
		out = append(out, clone(rec))
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b core.PersistedRecord) int {
		if c := strings.Compare(b.Metadata.CreatedAt, a.Metadata.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func clone(rec core.PersistedRecord) core.PersistedRecord {
	rec.Files = slices.Clone(rec.Files)
	rec.Metadata.Tags = slices.Clone(rec.Metadata.Tags)
	rec.Metadata.StrataLayers = slices.Clone(rec.Metadata.StrataLayers)
	rec.Metadata.StrataSummary.Materials = slices.Clone(rec.Metadata.StrataSummary.Materials)
	return rec
}
