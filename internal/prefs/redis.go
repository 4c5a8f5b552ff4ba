package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Rorqualx/ytorigin/internal/config"
	"github.com/Rorqualx/ytorigin/internal/types"
)

const redisKeyPrefix = "ytorigin:pref:"

// RedisStore keeps preferences in Redis so several daemons can share them.
type RedisStore struct {
	client *redis.Client
}

// OpenRedis connects to the server at redisURL and verifies it with PING.
func OpenRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	if redisURL == "" {
		return nil, types.NewStoreError(config.PrefsBackendRedis, "open", fmt.Errorf("REDIS_URL is required"))
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, types.NewStoreError(config.PrefsBackendRedis, "open", fmt.Errorf("parse REDIS_URL: %w", err))
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, types.NewStoreError(config.PrefsBackendRedis, "open", fmt.Errorf("connect: %w", err))
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, types.NewStoreError(r.Backend(), "get", r.mapErr(err))
	}
	return value, true, nil
}

// Set stores value without expiry.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return types.NewStoreError(r.Backend(), "set", r.mapErr(err))
	}
	return nil
}

func (r *RedisStore) Backend() string { return config.PrefsBackendRedis }

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) mapErr(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: %v", types.ErrStoreClosed, err)
	}
	return err
}
