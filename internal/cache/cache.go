// Package cache keeps the latest snapshot of every table in Redis so that
// other processes can read table state without going through a table's
// goroutine.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/lox/dicepoker/internal/game"
)

const (
	KeySnapshot = "dicepoker:table:%s:snapshot"
	KeyTables   = "dicepoker:tables"

	TTLSnapshot = 24 * time.Hour
)

// ErrMiss is returned when no snapshot is cached for a table.
var ErrMiss = errors.New("cache: miss")

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// SnapshotCache stores table snapshots in Redis. It implements
// table.Observer.
type SnapshotCache struct {
	client  *redis.Client
	logger  *log.Logger
	timeout time.Duration
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, opts Options, logger *log.Logger) (*SnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}
	return &SnapshotCache{
		client:  client,
		logger:  logger.WithPrefix("cache"),
		timeout: 2 * time.Second,
	}, nil
}

// Close closes the Redis client.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}

// Put stores snap and registers its table.
func (c *SnapshotCache) Put(ctx context.Context, snap game.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cache: encode snapshot: %w", err)
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(KeySnapshot, snap.TableID), data, TTLSnapshot)
	pipe.SAdd(ctx, KeyTables, snap.TableID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: store snapshot: %w", err)
	}
	return nil
}

// Get returns the cached snapshot for tableID.
func (c *SnapshotCache) Get(ctx context.Context, tableID string) (game.Snapshot, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf(KeySnapshot, tableID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return game.Snapshot{}, fmt.Errorf("%w: %s", ErrMiss, tableID)
	}
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("cache: load snapshot: %w", err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("cache: decode snapshot: %w", err)
	}
	return snap, nil
}

// Tables lists every table that has published a snapshot.
func (c *SnapshotCache) Tables(ctx context.Context) ([]string, error) {
	ids, err := c.client.SMembers(ctx, KeyTables).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: list tables: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// Forget removes a table's snapshot.
func (c *SnapshotCache) Forget(ctx context.Context, tableID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, fmt.Sprintf(KeySnapshot, tableID))
	pipe.SRem(ctx, KeyTables, tableID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: forget table: %w", err)
	}
	return nil
}

func (c *SnapshotCache) OnEvent(string, game.GameEvent) {}

func (c *SnapshotCache) OnSnapshot(snap game.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.Put(ctx, snap); err != nil {
		c.logger.Warn("Failed to cache snapshot", "table", snap.TableID, "error", err)
	}
}
