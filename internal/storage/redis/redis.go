package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "denylist:refresh:"

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithClient(client), nil
}

func NewWithClient(client *redis.Client) *RedisRepo {
	return &RedisRepo{
		client: client,
	}
}

// * RevokeToken stores the refresh token id until the token itself expires.
// An already expired token is a no-op.
func (r *RedisRepo) RevokeToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	const op = "storage.redis.RevokeToken"

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	// SETNX keeps the first revocation's TTL
	if err := r.client.SetNX(ctx, key(jti), strconv.FormatInt(userID, 10), ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisRepo) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	const op = "storage.redis.IsTokenRevoked"

	n, err := r.client.Exists(ctx, key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

// * Close closes the client connection pool.
func (r *RedisRepo) Close() {
	r.client.Close()
}

func key(jti string) string {
	return denylistPrefix + jti
}
