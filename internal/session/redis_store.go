package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// redisSession is the JSON value stored under each key.
type redisSession struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore keeps sessions in Redis with a native TTL per key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL (redis://[:password@]host:port/db) and pings it.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("session: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("session: connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Save stores the session with a TTL ending at expiresAt.
func (s *RedisStore) Save(ctx context.Context, id, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expiry %s is in the past", expiresAt.Format(time.RFC3339))
	}

	data, err := json.Marshal(redisSession{UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("session: marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: save session: %w", err)
	}
	return nil
}

// Lookup returns the session's user id. Redis drops expired keys itself.
func (s *RedisStore) Lookup(ctx context.Context, id string) (string, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session: lookup session: %w", err)
	}

	var data redisSession
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("session: unmarshal session: %w", err)
	}
	return data.UserID, nil
}

// Revoke deletes the key.
func (s *RedisStore) Revoke(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session: revoke session: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks Redis is reachable. Used by the health endpoint.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
