package kvstore

import (
	"context"
	"time"
)

type redisKV interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Take(ctx context.Context, key string) (string, bool, error)
	CartKey(parts ...string) string
}

// Redis stores values under the fm:cart namespace with an optional TTL that
// is refreshed on every write.
type Redis struct {
	client redisKV
	ttl    time.Duration
}

func NewRedis(client redisKV, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Load(ctx context.Context, key string) (string, bool, error) {
	return r.client.Lookup(ctx, r.client.CartKey(key))
}

func (r *Redis) Save(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.client.CartKey(key), value, r.ttl)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.client.CartKey(key))
}

func (r *Redis) Take(ctx context.Context, key string) (string, bool, error) {
	return r.client.Take(ctx, r.client.CartKey(key))
}
