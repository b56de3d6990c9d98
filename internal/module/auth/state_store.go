package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore holds pending OAuth states until the callback consumes them.
type StateStore interface {
	Set(ctx context.Context, state string, data string) error
	Get(ctx context.Context, state string) (string, error)
	Delete(ctx context.Context, state string) error
}

// MemoryStateStore is an in-memory implementation of StateStore.
// Suitable for single-instance deployments.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]*stateEntry
	ttl    time.Duration
	done   chan struct{}
	once   sync.Once
}

type stateEntry struct {
	data      string
	expiresAt time.Time
}

// NewMemoryStateStore creates a new in-memory state store.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	store := &MemoryStateStore{
		states: make(map[string]*stateEntry),
		ttl:    ttl,
		done:   make(chan struct{}),
	}
	go store.cleanup()
	return store
}

// Set stores a state with data.
func (s *MemoryStateStore) Set(_ context.Context, state string, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state] = &stateEntry{
		data:      data,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Get retrieves data for a state.
func (s *MemoryStateStore) Get(_ context.Context, state string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.states[state]
	if !ok {
		return "", fmt.Errorf("%w: not found", ErrInvalidOAuthState)
	}

	if time.Now().After(entry.expiresAt) {
		return "", fmt.Errorf("%w: expired", ErrInvalidOAuthState)
	}

	return entry.data, nil
}

// Delete removes a state.
func (s *MemoryStateStore) Delete(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, state)
	return nil
}

// Close stops the background cleanup.
func (s *MemoryStateStore) Close() {
	s.once.Do(func() { close(s.done) })
}

// cleanup periodically removes expired states.
func (s *MemoryStateStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for key, entry := range s.states {
				if now.After(entry.expiresAt) {
					delete(s.states, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

const stateKeyPrefix = "album:oauth_state:"

// RedisStateStore keeps OAuth states in Redis so any instance can serve the callback.
type RedisStateStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(client redis.UniversalClient, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisStateStore{client: client, ttl: ttl}
}

func (s *RedisStateStore) Set(ctx context.Context, state string, data string) error {
	return s.client.Set(ctx, stateKeyPrefix+state, data, s.ttl).Err()
}

func (s *RedisStateStore) Get(ctx context.Context, state string) (string, error) {
	data, err := s.client.Get(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: not found", ErrInvalidOAuthState)
	}
	if err != nil {
		return "", fmt.Errorf("get oauth state: %w", err)
	}
	return data, nil
}

func (s *RedisStateStore) Delete(ctx context.Context, state string) error {
	return s.client.Del(ctx, stateKeyPrefix+state).Err()
}

var (
	_ StateStore = (*MemoryStateStore)(nil)
	_ StateStore = (*RedisStateStore)(nil)
)
