package seen

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
)

// Redis stores the set under a single Redis key so it survives restarts.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis creates a Redis-backed set.
func NewRedis(addr, password string, db int, key string) *Redis {
	return NewRedisWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), key)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, key string) *Redis {
	if key == "" {
		key = "coinsync:seen"
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Has(ctx context.Context, id string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember %s: %w", r.key, err)
	}
	return ok, nil
}

func (r *Redis) Add(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := r.client.SAdd(ctx, r.key, members...).Err(); err != nil {
		return fmt.Errorf("redis sadd %s: %w", r.key, err)
	}
	return nil
}

// List returns the identifiers in sorted order.
func (r *Redis) List(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", r.key, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
