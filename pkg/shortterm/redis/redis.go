// Package redis provides a Redis-backed implementation of the
// shortterm.Driver interface.
//
// Each thread's log is a Redis list; turns are stored as JSON entries. Every
// Driver method maps onto a single Redis list command (RPUSH, LRANGE, LPOP,
// LTRIM, LLEN), so each operation is atomic at the store level.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/papercomputeco/warren/pkg/shortterm"
)

const keyPrefix = "warren:stm:"

// Config holds configuration for the Redis short-term driver.
type Config struct {
	// Addr is the Redis host:port (e.g. "localhost:6379").
	Addr string

	// Password is the optional Redis AUTH password.
	Password string

	// DB is the Redis logical database number.
	DB int
}

// Driver implements shortterm.Driver using Redis lists.
type Driver struct {
	client *redis.Client
}

// NewDriver creates a Redis short-term driver and verifies connectivity.
func NewDriver(ctx context.Context, cfg Config) (*Driver, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: pinging redis at %s: %v", shortterm.ErrConnection, cfg.Addr, err)
	}

	return &Driver{client: client}, nil
}

// Append pushes a JSON-encoded turn onto the tail of the thread's list.
func (d *Driver) Append(ctx context.Context, key string, turn shortterm.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encoding turn: %w", err)
	}

	if err := d.client.RPush(ctx, keyPrefix+key, data).Err(); err != nil {
		return fmt.Errorf("appending turn: %w", err)
	}
	return nil
}

// Load returns all retained turns for the thread, oldest first.
func (d *Driver) Load(ctx context.Context, key string) ([]shortterm.Turn, error) {
	entries, err := d.client.LRange(ctx, keyPrefix+key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}

	turns := make([]shortterm.Turn, 0, len(entries))
	for _, entry := range entries {
		var turn shortterm.Turn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			return nil, fmt.Errorf("decoding turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// PopOldest removes and returns the head of the thread's list.
func (d *Driver) PopOldest(ctx context.Context, key string) (shortterm.Turn, error) {
	entry, err := d.client.LPop(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return shortterm.Turn{}, shortterm.ErrEmpty
	}
	if err != nil {
		return shortterm.Turn{}, fmt.Errorf("popping turn: %w", err)
	}

	var turn shortterm.Turn
	if err := json.Unmarshal([]byte(entry), &turn); err != nil {
		return shortterm.Turn{}, fmt.Errorf("decoding turn: %w", err)
	}
	return turn, nil
}

// Trim keeps only the newest window entries of the thread's list.
func (d *Driver) Trim(ctx context.Context, key string, window int) error {
	if window <= 0 {
		if err := d.client.Del(ctx, keyPrefix+key).Err(); err != nil {
			return fmt.Errorf("clearing thread: %w", err)
		}
		return nil
	}

	if err := d.client.LTrim(ctx, keyPrefix+key, int64(-window), -1).Err(); err != nil {
		return fmt.Errorf("trimming thread: %w", err)
	}
	return nil
}

// Len returns the number of retained turns for the thread.
func (d *Driver) Len(ctx context.Context, key string) (int, error) {
	n, err := d.client.LLen(ctx, keyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("counting turns: %w", err)
	}
	return int(n), nil
}

// Close releases the underlying Redis connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

var _ shortterm.Driver = (*Driver)(nil)
