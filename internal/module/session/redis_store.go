package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "album:session:"

// RedisStore keeps sessions in Redis with token fields sealed.
type RedisStore struct {
	client redis.UniversalClient
	sealer *TokenSealer
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.UniversalClient, sealer *TokenSealer, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, sealer: sealer, ttl: ttl}
}

// record is the stored form of a Session.
type record struct {
	ID            string     `json:"id"`
	Subject       string     `json:"sub"`
	IdentityToken string     `json:"idt"`
	AccessToken   string     `json:"act,omitempty"`
	RefreshToken  string     `json:"rft,omitempty"`
	ExpiresAt     time.Time  `json:"exp"`
	Error         ErrorState `json:"err"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return r.open(&rec)
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	data, err := r.encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+s.ID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Replace uses SET XX KEEPTTL so a concurrent Delete is never undone.
func (r *RedisStore) Replace(ctx context.Context, s *Session) error {
	data, err := r.encode(s)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, sessionKeyPrefix+s.ID, data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKeyPrefix+id).Err()
}

func (r *RedisStore) encode(s *Session) ([]byte, error) {
	rec, err := r.seal(s)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

func (r *RedisStore) seal(s *Session) (*record, error) {
	rec := &record{
		ID:        s.ID,
		Subject:   s.Subject,
		ExpiresAt: s.ExpiresAt,
		Error:     s.Error,
		CreatedAt: s.CreatedAt,
	}

	var err error
	if rec.IdentityToken, err = r.sealer.Seal(s.IdentityToken); err != nil {
		return nil, err
	}
	if rec.AccessToken, err = r.sealer.Seal(s.AccessToken); err != nil {
		return nil, err
	}
	if rec.RefreshToken, err = r.sealer.Seal(s.RefreshToken); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *RedisStore) open(rec *record) (*Session, error) {
	s := &Session{
		ID:        rec.ID,
		Subject:   rec.Subject,
		ExpiresAt: rec.ExpiresAt,
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt,
	}

	var err error
	if s.IdentityToken, err = r.sealer.Open(rec.IdentityToken); err != nil {
		return nil, err
	}
	if s.AccessToken, err = r.sealer.Open(rec.AccessToken); err != nil {
		return nil, err
	}
	if s.RefreshToken, err = r.sealer.Open(rec.RefreshToken); err != nil {
		return nil, err
	}
	return s, nil
}

var _ Store = (*RedisStore)(nil)
