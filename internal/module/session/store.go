package session

import (
	"context"
	"sync"
	"time"
)

// Store persists sessions by ID.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	// Replace overwrites an existing session without extending its lifetime.
	// It returns ErrNotFound when the session was deleted or has expired.
	Replace(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory.
// Suitable for single-instance deployments; use RedisStore otherwise.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
}

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store whose entries live for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	store := &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go store.cleanup()
	return store
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return entry.session.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = &memoryEntry{
		session:   s.Clone(),
		expiresAt: time.Now().Add(m.ttl),
	}
	return nil
}

func (m *MemoryStore) Replace(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[s.ID]
	if !ok || time.Now().After(entry.expiresAt) {
		return ErrNotFound
	}
	entry.session = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Close stops the background cleanup.
func (m *MemoryStore) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for id, entry := range m.sessions {
				if now.After(entry.expiresAt) {
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
		}
	}
}

var _ Store = (*MemoryStore)(nil)
