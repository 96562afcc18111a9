package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"pm-dashboard/domain"
)

const defaultUpdateAttempts = 5

// RedisStore keeps sessions as JSON documents in Redis. Every write
// refreshes the TTL so a session lives as long as it is used.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	attempts int
	logger   *log.Logger
}

// NewRedis creates a Redis-backed store.
func NewRedis(client *redis.Client, ttl time.Duration, logger *log.Logger) *RedisStore {
	if client == nil {
		panic("storage.NewRedis: client is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &RedisStore{client: client, ttl: ttl, attempts: defaultUpdateAttempts, logger: logger}
}

// Get returns the stored session or a fresh one when none exists yet.
func (r *RedisStore) Get(ctx context.Context, id string) (domain.Session, error) {
	key := sessionKey(id)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.NewSession(id), nil
		}
		return domain.Session{}, err
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			r.logger.WithError(err).WithField("session", id).Warn("failed to refresh session ttl")
		}
	}
	return r.decode(id, data), nil
}

// Update runs fn inside a WATCH transaction and retries when another writer
// changed the session first.
func (r *RedisStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (domain.Session, error) {
	key := sessionKey(id)
	var out domain.Session

	txf := func(tx *redis.Tx) error {
		sess := domain.NewSession(id)
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			sess = r.decode(id, data)
		case !errors.Is(err, redis.Nil):
			return err
		}
		if fn != nil {
			if err := fn(&sess); err != nil {
				return err
			}
		}
		payload, err := sonic.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err == nil {
			out = sess
		}
		return err
	}

	for i := 0; i < r.attempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			r.logger.WithField("session", id).Debug("session changed during update; retrying")
			continue
		}
		return domain.Session{}, err
	}
	return domain.Session{}, fmt.Errorf("%w: session %s", ErrConflict, id)
}

// Ping checks connectivity to Redis.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// decode falls back to a fresh session when the stored document is unreadable.
func (r *RedisStore) decode(id string, data []byte) domain.Session {
	var sess domain.Session
	if err := sonic.Unmarshal(data, &sess); err != nil {
		r.logger.WithError(err).WithField("session", id).Error("failed to decode session; starting over")
		return domain.NewSession(id)
	}
	sess.ID = id
	return sess
}

func sessionKey(id string) string {
	return "session:" + id
}
