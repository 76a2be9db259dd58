package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client and checks that the server answers
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
