package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct{ n int }

func (g *seqIDs) UID(prefix string) string {
	g.n++
	return fmt.Sprintf("%s_%03d", prefix, g.n)
}

// memStore records every Put; err makes Put fail without storing.
type memStore struct {
	mu      sync.Mutex
	records map[string][]PersistedRecord
	err     error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string][]PersistedRecord)}
}

func (s *memStore) Put(_ context.Context, collection string, rec PersistedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records[collection] = append(s.records[collection], rec)
	return nil
}

func (s *memStore) count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[collection])
}

type staticIdentity struct{ user *User }

func (i staticIdentity) CurrentUser(context.Context) *User { return i.user }

type recordingNotifier struct {
	mu     sync.Mutex
	kinds  []NoticeKind
	notice []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string, kind NoticeKind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	n.notice = append(n.notice, message)
}

type stubSchema struct{ result SchemaResult }

func (s stubSchema) ValidateRecord(PersistedRecord) SchemaResult { return s.result }

func newTestPersister(store Storage, opts ...PersisterOption) *Persister {
	base := []PersisterOption{
		WithClock(fixedClock{testNow}),
		WithIDGenerator(&seqIDs{}),
		WithNotifier(&recordingNotifier{}),
	}
	return NewPersister(store, append(base, opts...)...)
}

func newTestExtractor(opts ...ExtractorOption) *Extractor {
	return NewExtractor(append([]ExtractorOption{WithExtractorClock(fixedClock{testNow})}, opts...)...)
}

func ptr[T any](v T) *T { return &v }
