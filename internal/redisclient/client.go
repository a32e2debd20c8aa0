package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SaveSession stores a session key for a user with a TTL.
func (c *Client) SaveSession(ctx context.Context, sessionID string, userID int64, ttl time.Duration) error {
	key := fmt.Sprintf("session:%s", sessionID)
	if err := c.rdb.Set(ctx, key, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves the user behind a session key. ok is false when the
// session does not exist or has expired.
func (c *Client) GetSession(ctx context.Context, sessionID string) (userID int64, ok bool, err error) {
	key := fmt.Sprintf("session:%s", sessionID)

	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get session: %w", err)
	}

	userID, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt session value: %w", err)
	}
	return userID, true, nil
}

// DeleteSession removes a session key.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("session:%s", sessionID)).Err()
}
