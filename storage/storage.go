package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"pm-dashboard/domain"
)

// ErrConflict is returned when a session kept changing underneath an update
// for more attempts than allowed.
var ErrConflict = errors.New("session update conflict")

// MemoryStore keeps sessions in process memory. Sessions idle for longer
// than the TTL are dropped.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*memoryEntry
}

type memoryEntry struct {
	session domain.Session
	touched time.Time
}

// NewMemory creates an in-memory store. A non-positive ttl keeps sessions forever.
func NewMemory(ttl time.Duration) *MemoryStore {
	if ttl < 0 {
		ttl = 0
	}
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*memoryEntry),
	}
}

// Get returns a snapshot of the session, creating it when absent.
func (m *MemoryStore) Get(ctx context.Context, id string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(id).session.Clone(), nil
}

// Update applies fn to the session and stores the result unless fn fails.
// A nil fn only initializes the session.
func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ent := m.load(id)
	next := ent.session.Clone()
	if fn != nil {
		if err := fn(&next); err != nil {
			return domain.Session{}, err
		}
	}
	ent.session = next
	return next.Clone(), nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	return len(m.sessions)
}

// load must be called with mu held.
func (m *MemoryStore) load(id string) *memoryEntry {
	m.sweep()
	ent, ok := m.sessions[id]
	if !ok {
		ent = &memoryEntry{session: domain.NewSession(id)}
		m.sessions[id] = ent
	}
	ent.touched = m.now()
	return ent
}

func (m *MemoryStore) sweep() {
	if m.ttl == 0 {
		return
	}
	cutoff := m.now().Add(-m.ttl)
	for id, ent := range m.sessions {
		if ent.touched.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
