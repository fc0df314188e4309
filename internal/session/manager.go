// Package session keeps open review models between HTTP requests.
//
// Each session wraps one core.ReviewModel behind its own mutex, since a
// ReviewModel is not safe for concurrent use. Sessions live in a go-cache
// registry and expire after the configured idle TTL; every access renews it.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/JonMunkholm/strata/internal/core"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("review session not found")

const idPrefix = "rev_"

type entry struct {
	mu        sync.Mutex
	model     *core.ReviewModel
	owner     string
	createdAt time.Time
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID           string                `json:"id"`
	Owner        string                `json:"owner,omitempty"`
	State        core.ReviewState      `json:"state"`
	Draft        core.Draft            `json:"draft"`
	Result       core.ProcessedResult  `json:"result"`
	Edits        []core.EditRecord     `json:"edits"`
	Acknowledged bool                  `json:"acknowledged"`
	Validation   core.ValidationResult `json:"validation"`
	RecordID     string                `json:"recordId,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
}

// Manager is the session registry.
type Manager struct {
	cache  *gocache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewManager creates a registry. ttl <= 0 keeps sessions until closed.
func NewManager(ttl, cleanupInterval time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
		cleanupInterval = 0
	} else if cleanupInterval <= 0 {
		cleanupInterval = ttl / 2
	}

	m := &Manager{
		cache:  gocache.New(ttl, cleanupInterval),
		ttl:    ttl,
		logger: logger,
	}
	m.cache.OnEvicted(func(id string, _ any) {
		m.logger.Debug("session.evicted", "session_id", id)
	})
	return m
}

// Open registers model and returns its session id.
func (m *Manager) Open(model *core.ReviewModel, owner string) string {
	id := idPrefix + uuid.NewString()
	m.cache.Set(id, &entry{model: model, owner: owner, createdAt: time.Now().UTC()}, gocache.DefaultExpiration)
	m.logger.Info("session.opened", "session_id", id, "owner", owner, "state", model.State())
	return id
}

// With runs fn while holding the session's lock and renews its TTL.
func (m *Manager) With(id string, fn func(*core.ReviewModel) error) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.model)
}

// Get returns a snapshot of the session.
func (m *Manager) Get(id string) (Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(id, e), nil
}

// Close forgets the session. Closing an unknown id is not an error.
func (m *Manager) Close(id string) {
	m.cache.Delete(id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return m.cache.ItemCount()
}

func (m *Manager) lookup(id string) (*entry, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	e := v.(*entry)
	if m.ttl != gocache.NoExpiration {
		m.cache.Set(id, e, gocache.DefaultExpiration)
	}
	return e, nil
}

func snapshot(id string, e *entry) Snapshot {
	s := Snapshot{
		ID:           id,
		Owner:        e.owner,
		State:        e.model.State(),
		Draft:        e.model.Draft(),
		Result:       e.model.Result(),
		Edits:        e.model.Edits(),
		Acknowledged: e.model.Acknowledged(),
		Validation:   e.model.Validate(),
		CreatedAt:    e.createdAt,
	}
	if rec, ok := e.model.Saved(); ok {
		s.RecordID = rec.ID
	}
	return s
}
