package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps a long-lived scope in a Redis hash, one hash per scope.
// It suits embedders that share visitor identity across processes.
type Redis struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// Compile-time interface check.
var _ Storage = (*Redis)(nil)

// NewRedis binds a Redis-backed storage to scope. Each operation is bounded
// by timeout; zero means one second.
func NewRedis(client *redis.Client, scope string, timeout time.Duration) *Redis {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Redis{
		client:  client,
		key:     fmt.Sprintf("visiora:storage:%s", scope),
		timeout: timeout,
	}
}

func (r *Redis) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

// GetItem implements Storage.
func (r *Redis) GetItem(key string) (string, bool, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	value, err := r.client.HGet(ctx, r.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %q: %v", ErrUnavailable, key, err)
	}
	return value, true, nil
}

// SetItem implements Storage.
func (r *Redis) SetItem(key, value string) error {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.HSet(ctx, r.key, key, value).Err(); err != nil {
		return fmt.Errorf("%w: set %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

// RemoveItem implements Storage.
func (r *Redis) RemoveItem(key string) error {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.HDel(ctx, r.key, key).Err(); err != nil {
		return fmt.Errorf("%w: remove %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Clear implements Storage.
func (r *Redis) Clear() error {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrUnavailable, err)
	}
	return nil
}
