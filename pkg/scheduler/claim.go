// Package scheduler runs the periodic deadline sweep: expired workflow steps,
// overdue requirements, and overdue action items.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claimer grants short-lived exclusive claims on entities so concurrent sweep
// instances never escalate the same row twice.
type Claimer interface {
	Claim(ctx context.Context, entityID string, ttl time.Duration) (bool, error)
}

// RedisClaimer implements claims with Redis SET NX leases.
type RedisClaimer struct {
	client *redis.Client
	prefix string
}

// NewRedisClaimer connects to Redis and verifies the connection.
func NewRedisClaimer(ctx context.Context, redisURL string) (*RedisClaimer, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisClaimer{client: client, prefix: "auditflow:sweep:claim:"}, nil
}

// Claim takes a lease on the entity. The lease expires on its own, so a
// crashed sweep never blocks future runs.
func (c *RedisClaimer) Claim(ctx context.Context, entityID string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+entityID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", entityID, err)
	}

	return ok, nil
}

// Close releases the Redis connection.
func (c *RedisClaimer) Close() error {
	return c.client.Close()
}

// LocalClaimer implements claims with an in-process map. It serves tests and
// single-instance deployments without Redis.
type LocalClaimer struct {
	mu     sync.Mutex
	claims map[string]time.Time
}

// NewLocalClaimer creates an in-process claimer.
func NewLocalClaimer() *LocalClaimer {
	return &LocalClaimer{claims: make(map[string]time.Time)}
}

// Claim takes an in-process lease on the entity.
func (c *LocalClaimer) Claim(ctx context.Context, entityID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	expiry, held := c.claims[entityID]
	if held && expiry.After(now) {
		return false, nil
	}

	c.claims[entityID] = now.Add(ttl)

	return true, nil
}
