package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionTTL matches the Data API's idle session timeout. A token unused for
// longer is dead on the server, so Redis may forget it too.
const SessionTTL = 15 * time.Minute

const redisPrefix = "fmrest:token:"

// Redis shares tokens between hosts through a Redis server.
type Redis struct {
	Client redis.UniversalClient
	TTL    time.Duration
}

// NewRedis connects to url (redis://[:password@]host:port/db).
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &Redis{Client: redis.NewClient(opts), TTL: SessionTTL}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	token, err := r.Client.Get(ctx, redisPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return token, nil
}

// Set stores token and restarts its TTL.
func (r *Redis) Set(ctx context.Context, key, token string) error {
	if err := r.Client.Set(ctx, redisPrefix+key, token, r.TTL).Err(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, key string) error {
	if err := r.Client.Del(ctx, redisPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.Client.Close()
}
