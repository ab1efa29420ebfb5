package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCache stores rate tables keyed by base currency. Every table written
// fresh is also kept as a stale copy that never expires.
type RateCache interface {
	Fresh(ctx context.Context, base string) (map[string]float64, bool, error)
	Stale(ctx context.Context, base string) (map[string]float64, bool, error)
	Store(ctx context.Context, base string, rates map[string]float64, ttl time.Duration) error
}

func freshKey(base string) string { return "fx:rates:" + strings.ToUpper(base) }
func staleKey(base string) string { return freshKey(base) + ":stale" }

// RedisCache keeps rate tables in Redis as JSON
type RedisCache struct {
	client *redis.Client
}

var _ RateCache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Fresh returns the table if its TTL has not expired
func (r *RedisCache) Fresh(ctx context.Context, base string) (map[string]float64, bool, error) {
	return r.get(ctx, freshKey(base))
}

// Stale returns the last table ever stored, regardless of age
func (r *RedisCache) Stale(ctx context.Context, base string) (map[string]float64, bool, error) {
	return r.get(ctx, staleKey(base))
}

// Store writes the fresh copy with ttl and the stale copy without expiry
func (r *RedisCache) Store(ctx context.Context, base string, rates map[string]float64, ttl time.Duration) error {
	data, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("failed to marshal rates: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, freshKey(base), data, ttl)
	pipe.Set(ctx, staleKey(base), data, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store rates: %w", err)
	}
	return nil
}

func (r *RedisCache) get(ctx context.Context, key string) (map[string]float64, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	var rates map[string]float64
	if err := json.Unmarshal(data, &rates); err != nil {
		return nil, false, fmt.Errorf("invalid rates at %s: %w", key, err)
	}
	return rates, true, nil
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

type memoryEntry struct {
	rates     map[string]float64
	expiresAt time.Time
}

// MemoryCache is a process-local RateCache used when Redis is not configured
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ RateCache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCache) Fresh(_ context.Context, base string) (map[string]float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[strings.ToUpper(base)]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.rates, true, nil
}

func (m *MemoryCache) Stale(_ context.Context, base string) (map[string]float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[strings.ToUpper(base)]
	if !ok {
		return nil, false, nil
	}
	return e.rates, true, nil
}

func (m *MemoryCache) Store(_ context.Context, base string, rates map[string]float64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[strings.ToUpper(base)] = memoryEntry{rates: rates, expiresAt: m.now().Add(ttl)}
	return nil
}
