package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/auctionhouse/config"
	"example.com/auctionhouse/internal/models"
)

// snapshotTTL bounds staleness for cached auction terms; the durable
// projection remains the source once the cache entry expires.
const snapshotTTL = 10 * time.Minute

// ErrCacheMiss is returned when a snapshot is not cached.
var ErrCacheMiss = errors.New("snapshot not found in cache")

// SnapshotCache caches auction snapshots in Redis so repeated bids on the
// same auction skip the projection table and the fallback lookup.
type SnapshotCache struct {
	client  *redis.Client
	enabled bool
}

// NewSnapshotCache creates a new Redis-backed snapshot cache
func NewSnapshotCache(cfg config.RedisConfig) (*SnapshotCache, error) {
	if !cfg.Enabled {
		return &SnapshotCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &SnapshotCache{
		client:  client,
		enabled: true,
	}, nil
}

// Disabled returns a cache that never hits; callers need no nil checks.
func Disabled() *SnapshotCache {
	return &SnapshotCache{enabled: false}
}

// Get retrieves a cached snapshot
func (c *SnapshotCache) Get(ctx context.Context, id uuid.UUID) (*models.AuctionSnapshot, error) {
	if !c.enabled {
		return nil, ErrCacheMiss
	}

	data, err := c.client.Get(ctx, snapshotKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, errors.Wrap(err, "failed to get snapshot from Redis")
	}

	var snapshot models.AuctionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal cached snapshot")
	}

	return &snapshot, nil
}

// Set stores a snapshot with the standard TTL
func (c *SnapshotCache) Set(ctx context.Context, snapshot *models.AuctionSnapshot) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "failed to marshal snapshot for caching")
	}

	if err := c.client.Set(ctx, snapshotKey(snapshot.ID), data, snapshotTTL).Err(); err != nil {
		return errors.Wrap(err, "failed to set snapshot in Redis")
	}

	return nil
}

// Invalidate drops a cached snapshot after its auction changes.
func (c *SnapshotCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if !c.enabled {
		return nil
	}

	if err := c.client.Del(ctx, snapshotKey(id)).Err(); err != nil {
		return errors.Wrap(err, "failed to invalidate cached snapshot")
	}

	return nil
}

// snapshotKey generates the cache key for an auction snapshot
func snapshotKey(id uuid.UUID) string {
	return fmt.Sprintf("auction:snapshot:%s", id.String())
}

// Close closes the Redis connection
func (c *SnapshotCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}

	return c.client.Close()
}
