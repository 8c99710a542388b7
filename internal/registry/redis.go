// Package registry provides the process-wide "active document" slot that
// editing sessions publish to. The slot is shared: any session may overwrite
// it, and a session only clears it if it still owns it.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeKey = "inkwell:active_document"

// Entry is the value stored in the active-document slot.
type Entry struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	SessionID  string    `json:"session_id"`
	SetAt      time.Time `json:"set_at"`
}

// ErrEmpty means no session currently holds the slot.
var ErrEmpty = errors.New("no active document")

// RedisRegistry implements the active-document slot on Redis.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(redisURL string) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisRegistryWithClient(client), nil
}

// NewRedisRegistryWithClient creates a registry from an existing client.
func NewRedisRegistryWithClient(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{
		client: client,
		ttl:    12 * time.Hour,
	}
}

// Set publishes the entry to the slot, overwriting whatever was there.
func (r *RedisRegistry) Set(ctx context.Context, entry Entry) error {
	entry.SetAt = time.Now().UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal active entry: %w", err)
	}
	if err := r.client.Set(ctx, activeKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set active document: %w", err)
	}
	return nil
}

// Get returns the current slot value, or ErrEmpty.
func (r *RedisRegistry) Get(ctx context.Context) (Entry, error) {
	data, err := r.client.Get(ctx, activeKey).Result()
	if err == redis.Nil {
		return Entry{}, ErrEmpty
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get active document: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return Entry{}, fmt.Errorf("unmarshal active entry: %w", err)
	}
	return entry, nil
}

// Clear removes the slot value if sessionID still owns it. Clearing a slot
// another session has since overwritten is a no-op, not an error.
func (r *RedisRegistry) Clear(ctx context.Context, sessionID string) error {
	entry, err := r.Get(ctx)
	if errors.Is(err, ErrEmpty) {
		return nil
	}
	if err != nil {
		return err
	}
	if entry.SessionID != sessionID {
		return nil
	}
	if err := r.client.Del(ctx, activeKey).Err(); err != nil {
		return fmt.Errorf("clear active document: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// Ping checks if Redis is reachable.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
