// Package cache puts a Redis read-through cache in front of catalog lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"studiobook/internal/metrics"
	"studiobook/internal/models"
)

const keyPrefix = "studiobook"

// Source is the authoritative catalog.
type Source interface {
	GetService(ctx context.Context, tenantID, serviceID string) (*models.Service, error)
	GetRoom(ctx context.Context, tenantID, roomID string) (*models.Room, error)
}

// Catalog serves services and rooms from Redis and falls back to the source
// on a miss or on any Redis failure. Lookup errors are never cached.
type Catalog struct {
	source Source
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewCatalog wraps source. A nil client or a non-positive ttl disables caching.
func NewCatalog(source Source, client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Catalog {
	return &Catalog{source: source, redis: client, ttl: ttl, logger: logger}
}

func (c *Catalog) enabled() bool {
	return c.redis != nil && c.ttl > 0
}

func serviceKey(tenantID, serviceID string) string {
	return fmt.Sprintf("%s:service:%s:%s", keyPrefix, tenantID, serviceID)
}

func roomKey(tenantID, roomID string) string {
	return fmt.Sprintf("%s:room:%s:%s", keyPrefix, tenantID, roomID)
}

func (c *Catalog) GetService(ctx context.Context, tenantID, serviceID string) (*models.Service, error) {
	key := serviceKey(tenantID, serviceID)
	var svc models.Service
	if c.readCache(ctx, "service", key, &svc) {
		return &svc, nil
	}

	found, err := c.source.GetService(ctx, tenantID, serviceID)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, found)
	return found, nil
}

func (c *Catalog) GetRoom(ctx context.Context, tenantID, roomID string) (*models.Room, error) {
	key := roomKey(tenantID, roomID)
	var room models.Room
	if c.readCache(ctx, "room", key, &room) {
		return &room, nil
	}

	found, err := c.source.GetRoom(ctx, tenantID, roomID)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, found)
	return found, nil
}

// Invalidate drops cached entries for a room and a service of the tenant.
// Empty ids are skipped.
func (c *Catalog) Invalidate(ctx context.Context, tenantID, roomID, serviceID string) error {
	if !c.enabled() {
		return nil
	}
	var keys []string
	if roomID != "" {
		keys = append(keys, roomKey(tenantID, roomID))
	}
	if serviceID != "" {
		keys = append(keys, serviceKey(tenantID, serviceID))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

func (c *Catalog) readCache(ctx context.Context, kind, key string, out any) bool {
	if !c.enabled() {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.IncCache(kind, "miss")
		return false
	}
	if err != nil {
		metrics.IncCache(kind, "error")
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, using store")
		return false
	}
	if err := json.Unmarshal(val, out); err != nil {
		metrics.IncCache(kind, "error")
		return false
	}
	metrics.IncCache(kind, "hit")
	return true
}

func (c *Catalog) writeCache(ctx context.Context, key string, val any) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}
