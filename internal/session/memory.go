package session

import (
	"context"
	"sync"
	"time"

	"parcelview/internal/errors"
)

// MemoryStore keeps sessions in process memory. Entries expire ttl after
// their last Put.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	session Session
	expires time.Time
}

// NewMemoryStore returns an empty store. A ttl of zero never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Get returns a copy of the stored session.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session not found")
	}
	if m.ttl > 0 && m.now().After(e.expires) {
		delete(m.entries, id)
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session expired")
	}
	s := e.session
	if s.View != nil {
		v := *s.View
		s.View = &v
	}
	return &s, nil
}

// Put stores a copy of s.
func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *s
	if c.View != nil {
		v := *c.View
		c.View = &v
	}
	m.entries[s.ID] = memoryEntry{session: c, expires: m.now().Add(m.ttl)}
	return nil
}

// Delete removes id.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
