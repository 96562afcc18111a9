package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyHeader carries the client-chosen key of a task submission.
const IdempotencyHeader = "Idempotency-Key"

// RedisDeduper stores seen idempotency keys in Redis so every instance
// rejects a replayed submission.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(sessionID, key string) string {
	return fmt.Sprintf("idem:%s:%s", sessionID, key)
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, sessionID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(sessionID, key), 1, r.ttl).Result()
}

// Remove deletes a previously recorded key so the client may retry.
func (r *RedisDeduper) Remove(ctx context.Context, sessionID, key string) error {
	return r.client.Del(ctx, r.key(sessionID, key)).Err()
}

// MemoryDeduper is the single-process Deduper used without Redis.
type MemoryDeduper struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	keys map[dedupeKey]time.Time
}

type dedupeKey struct {
	session string
	key     string
}

// NewMemoryDeduper creates a deduper whose keys expire after ttl.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{ttl: ttl, now: time.Now, keys: make(map[dedupeKey]time.Time)}
}

func (m *MemoryDeduper) Add(_ context.Context, sessionID, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, exp := range m.keys {
		if !exp.IsZero() && !now.Before(exp) {
			delete(m.keys, k)
		}
	}
	k := dedupeKey{session: sessionID, key: key}
	if _, ok := m.keys[k]; ok {
		return false, nil
	}
	var exp time.Time
	if m.ttl > 0 {
		exp = now.Add(m.ttl)
	}
	m.keys[k] = exp
	return true, nil
}

func (m *MemoryDeduper) Remove(_ context.Context, sessionID, key string) error {
	m.mu.Lock()
	delete(m.keys, dedupeKey{session: sessionID, key: key})
	m.mu.Unlock()
	return nil
}
