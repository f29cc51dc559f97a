package mesh

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by KV.Get (and surfaces as a nil slot from
// MGet) when a key is absent or expired.
var ErrNotFound = errors.New("mesh: key not found")

// KV is the narrow key/value + pub/sub surface Mesh needs. It exists so
// Mesh can be exercised against an in-memory fake in tests without a
// running Redis server, while RedisKV wires the real ecosystem client
// used in production.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	MGet(ctx context.Context, keys ...string) ([]*string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channel string) Subscription
}

// Subscription is satisfied by *redis.PubSub.
type Subscription interface {
	Channel() <-chan *redis.Message
	Close() error
}

// RedisKV adapts a *redis.Client to KV.
type RedisKV struct {
	Client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV { return &RedisKV{Client: client} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *RedisKV) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	vals, err := r.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*string, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[i] = &s
	}
	return out, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.Client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	return r.Client.Del(ctx, keys...).Err()
}

func (r *RedisKV) Publish(ctx context.Context, channel, message string) error {
	return r.Client.Publish(ctx, channel, message).Err()
}

func (r *RedisKV) Subscribe(ctx context.Context, channel string) Subscription {
	return r.Client.Subscribe(ctx, channel)
}
