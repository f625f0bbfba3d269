package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saviobatista/bike-logger/internal/types"
)

// LastCycleTTL bounds how long a cached cycle outlives the ingester
const LastCycleTTL = 24 * time.Hour

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// Client caches the result of the last committed cycle per domain
type Client struct {
	client RedisClientInterface
}

// New creates a new Redis client
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func lastCycleKey(domain string) string {
	return fmt.Sprintf("cycle:last:%s", domain)
}

// StoreLastCycle stores the result of a committed cycle
func (c *Client) StoreLastCycle(ctx context.Context, result types.CycleResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle result: %w", err)
	}
	return c.client.Set(ctx, lastCycleKey(result.Domain), data, LastCycleTTL).Err()
}

// LastCycle returns the cached cycle of domain, or nil if none is cached
func (c *Client) LastCycle(ctx context.Context, domain string) (*types.CycleResult, error) {
	data, err := c.client.Get(ctx, lastCycleKey(domain)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle result: %w", err)
	}

	var result types.CycleResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cycle result: %w", err)
	}
	return &result, nil
}
