package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// REDIS CLIENT (dialog state + rate cache)

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a new Redis client.
func New(addr, password string, db int, ttl time.Duration) *Client {
	return &Client{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			PoolSize:     100,
			MinIdleConns: 10,
		}),
		ttl: ttl,
	}
}

// Get retrieves a key's value
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.client.Get(ctx, key).Bytes()
}

// Set sets a key's value with TTL
func (c *Client) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Del deletes a key
func (c *Client) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// GetJSON unmarshals a cached JSON value into dst.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return json.Unmarshal(data, dst)
}

// SetJSON marshals src to JSON and stores it under key with TTL.
func (c *Client) SetJSON(ctx context.Context, key string, src any, ttl time.Duration) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// SaveState saves user dialog state to Redis
func (c *Client) SaveState(ctx context.Context, chatID int64, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return c.client.Set(ctx, fmt.Sprintf("state:%d", chatID), data, c.ttl).Err()
}

// GetState retrieves user dialog state from Redis
func (c *Client) GetState(ctx context.Context, chatID int64, state any) error {
	data, err := c.client.Get(ctx, fmt.Sprintf("state:%d", chatID)).Bytes()
	if err != nil {
		return fmt.Errorf("get state: %w", err)
	}

	return json.Unmarshal(data, state)
}

// ClearState removes user dialog state from Redis
func (c *Client) ClearState(ctx context.Context, chatID int64) error {
	return c.client.Del(ctx, fmt.Sprintf("state:%d", chatID)).Err()
}

// Close closes the Redis connection
func (c *Client) Close() {
	if c.client != nil {
		_ = c.client.Close()
	}
}
