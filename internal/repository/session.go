package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fee-ledger/internal/clients"
	"fee-ledger/internal/domain"
)

// KeyValueStore is the subset of the redis client the cache-backed repositories use.
type KeyValueStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...any) error
	SRem(ctx context.Context, key string, members ...any) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// MemorySessionRepository keeps sessions until they are deleted or pruned.
// Expiry on read is the caller's concern.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]domain.Session)}
}

func (r *MemorySessionRepository) Save(ctx context.Context, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Token] = s
	return nil
}

func (r *MemorySessionRepository) Get(ctx context.Context, token string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

// PruneExpired drops every session expired at now and returns how many were removed.
func (r *MemorySessionRepository) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for token, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, token)
			n++
		}
	}
	return n, nil
}

// RedisSessionRepository relies on key TTLs for expiry.
type RedisSessionRepository struct {
	cache KeyValueStore
	now   func() time.Time
}

func NewRedisSessionRepository(cache KeyValueStore) *RedisSessionRepository {
	return &RedisSessionRepository{cache: cache, now: time.Now}
}

func sessionKey(token string) string {
	return "sessions:" + token
}

func (r *RedisSessionRepository) Save(ctx context.Context, s domain.Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.cache.Set(ctx, sessionKey(s.Token), raw, ttl); err != nil {
		return &domain.StorageError{Op: "save session", Err: err}
	}
	return nil
}

func (r *RedisSessionRepository) Get(ctx context.Context, token string) (domain.Session, error) {
	raw, err := r.cache.Get(ctx, sessionKey(token))
	if errors.Is(err, clients.ErrCacheMiss) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, &domain.StorageError{Op: "get session", Err: err}
	}

	var s domain.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return domain.Session{}, &domain.StorageError{Op: "decode session", Err: err}
	}
	return s, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, token string) error {
	if err := r.cache.Del(ctx, sessionKey(token)); err != nil {
		return &domain.StorageError{Op: "delete session", Err: err}
	}
	return nil
}

// PruneExpired is a no-op; redis expires the keys itself.
func (r *RedisSessionRepository) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
