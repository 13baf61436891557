// Package cache stores computed profiles in redis between simulation runs.
// Profile builds read the whole season's event history; caching them is the
// difference between a sub-second run and a multi-second one.
//
// All read failures degrade to cache misses and write failures are logged
// and dropped. A dead redis never blocks a simulation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/hockey-sim/internal/types"
)

// ProfileCacheService handles caching for computed profiles
type ProfileCacheService struct {
	client *redis.Client
	logger *logrus.Logger
	ttl    time.Duration
}

// NewProfileCacheService creates a new profile cache service
func NewProfileCacheService(client *redis.Client, logger *logrus.Logger, ttl time.Duration) *ProfileCacheService {
	return &ProfileCacheService{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func zoneKey(entityID int64, season int) string {
	return fmt.Sprintf("zone_profile:%d:%d", entityID, season)
}

func segmentKey(entityID int64, season int) string {
	return fmt.Sprintf("segment_profile:%d:%d", entityID, season)
}

func matchupKey(entityID, opponentID int64, season int) string {
	return fmt.Sprintf("matchup_profile:%d:%d:%d", entityID, opponentID, season)
}

// GetZoneProfile retrieves a zone profile from cache
func (c *ProfileCacheService) GetZoneProfile(ctx context.Context, entityID int64, season int) (*types.ZoneProfile, bool) {
	var p types.ZoneProfile
	if !c.get(ctx, zoneKey(entityID, season), &p) {
		return nil, false
	}
	return &p, true
}

// SetZoneProfile stores a zone profile in cache
func (c *ProfileCacheService) SetZoneProfile(ctx context.Context, p *types.ZoneProfile) {
	c.set(ctx, zoneKey(p.EntityID, p.Season), p)
}

// GetSegmentProfile retrieves a segment profile from cache
func (c *ProfileCacheService) GetSegmentProfile(ctx context.Context, entityID int64, season int) (*types.SegmentProfile, bool) {
	var p types.SegmentProfile
	if !c.get(ctx, segmentKey(entityID, season), &p) {
		return nil, false
	}
	return &p, true
}

// SetSegmentProfile stores a segment profile in cache
func (c *ProfileCacheService) SetSegmentProfile(ctx context.Context, p *types.SegmentProfile) {
	c.set(ctx, segmentKey(p.EntityID, p.Season), p)
}

// GetMatchupProfile retrieves a matchup profile from cache
func (c *ProfileCacheService) GetMatchupProfile(ctx context.Context, entityID, opponentID int64, season int) (*types.MatchupProfile, bool) {
	var p types.MatchupProfile
	if !c.get(ctx, matchupKey(entityID, opponentID, season), &p) {
		return nil, false
	}
	return &p, true
}

// SetMatchupProfile stores a matchup profile in cache
func (c *ProfileCacheService) SetMatchupProfile(ctx context.Context, p *types.MatchupProfile) {
	c.set(ctx, matchupKey(p.EntityID, p.OpponentID, p.Season), p)
}

// InvalidateEntity removes every cached profile for an entity, across all
// seasons and opponents. Called when new game data lands for the entity.
func (c *ProfileCacheService) InvalidateEntity(ctx context.Context, entityID int64) error {
	patterns := []string{
		fmt.Sprintf("zone_profile:%d:*", entityID),
		fmt.Sprintf("segment_profile:%d:*", entityID),
		fmt.Sprintf("matchup_profile:%d:*", entityID),
	}
	for _, pattern := range patterns {
		iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete cache key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
	}

	c.logger.WithField("entity_id", entityID).Debug("Invalidated cached profiles")
	return nil
}

func (c *ProfileCacheService) get(ctx context.Context, key string, out interface{}) bool {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("cache_key", key).Warn("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		c.logger.WithError(err).WithField("cache_key", key).Warn("Cache payload unmarshal failed")
		return false
	}
	c.logger.WithField("cache_key", key).Debug("Cache hit")
	return true
}

func (c *ProfileCacheService) set(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.WithError(err).WithField("cache_key", key).Warn("Cache payload marshal failed")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("cache_key", key).Warn("Cache write failed")
		return
	}
	c.logger.WithFields(logrus.Fields{
		"cache_key":  key,
		"expiration": c.ttl,
	}).Debug("Cached profile")
}
