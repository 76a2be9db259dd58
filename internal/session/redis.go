package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider stores the session under "session:<name>"
type RedisProvider struct {
	client *redis.Client
	key    string
}

// NewRedisProvider creates a provider for the named session
func NewRedisProvider(client *redis.Client, name string) *RedisProvider {
	return &RedisProvider{client: client, key: "session:" + name}
}

func (p *RedisProvider) Load(ctx context.Context) (Session, error) {
	raw, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, nil
	} else if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Save stores the session; ExpiresIn (seconds) becomes the key TTL.
func (p *RedisProvider) Save(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := time.Duration(0)
	if s.ExpiresIn > 0 {
		ttl = time.Duration(s.ExpiresIn) * time.Second
	}
	return p.client.Set(ctx, p.key, raw, ttl).Err()
}

func (p *RedisProvider) Clear(ctx context.Context) error {
	return p.client.Del(ctx, p.key).Err()
}
