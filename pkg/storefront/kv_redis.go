package storefront

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/solespace/solespace-backend/pkg/redis"
)

type redisBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	GuestCartKey(sessionID, name string) string
}

var _ redisBackend = (*redis.Client)(nil)

// RedisStore scopes keys to one guest session so a server-rendered
// storefront can hold guest carts outside the browser.
type RedisStore struct {
	backend   redisBackend
	sessionID string
	ttl       time.Duration
}

func NewRedisStore(backend redisBackend, sessionID string, ttl time.Duration) (*RedisStore, error) {
	if backend == nil {
		return nil, errors.New("redis backend is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("guest session id is required")
	}
	return &RedisStore{backend: backend, sessionID: sessionID, ttl: ttl}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.backend.Get(ctx, r.backend.GuestCartKey(r.sessionID, key))
	if redis.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.backend.Set(ctx, r.backend.GuestCartKey(r.sessionID, key), value, r.ttl)
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.backend.Del(ctx, r.backend.GuestCartKey(r.sessionID, key))
}
