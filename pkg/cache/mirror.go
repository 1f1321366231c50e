package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	mirrorKeyPrefix = "storefront:cache:"
	mirrorTagPrefix = "storefront:tag:"

	// tagIndexTTL bounds how long a tag index outlives its newest member
	tagIndexTTL = 24 * time.Hour
)

// Mirror is a Redis second level for cache entries. It lets replicas
// share responses and keeps stale data available across restarts.
type Mirror struct {
	redis *redis.Client
}

// NewMirror creates a mirror backed by redisClient.
func NewMirror(redisClient *redis.Client) *Mirror {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Mirror{
		redis: redisClient,
	}
}

// Load retrieves the entry stored under key.
// Returns ErrCacheMiss if Redis holds nothing for key.
func (m *Mirror) Load(ctx context.Context, key string) (*Entry, error) {
	data, err := m.redis.Get(ctx, mirrorKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Save stores entry under key. Redis drops it once its stale window closes.
func (m *Mirror) Save(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	expiry := entry.TTL + entry.StaleFor
	if expiry <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	pipe := m.redis.TxPipeline()
	pipe.Set(ctx, mirrorKeyPrefix+key, data, expiry)
	for _, tag := range entry.Tags {
		pipe.SAdd(ctx, mirrorTagPrefix+tag, key)
		pipe.Expire(ctx, mirrorTagPrefix+tag, tagIndexTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// InvalidateTag deletes every mirrored entry indexed under tag and
// returns how many keys were indexed.
func (m *Mirror) InvalidateTag(ctx context.Context, tag string) (int, error) {
	tagKey := mirrorTagPrefix + tag

	keys, err := m.redis.SMembers(ctx, tagKey).Result()
	if err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return 0, fmt.Errorf("redis smembers: %w", err)
	}

	doomed := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		doomed = append(doomed, mirrorKeyPrefix+key)
	}
	doomed = append(doomed, tagKey)

	if err := m.redis.Del(ctx, doomed...).Err(); err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return 0, fmt.Errorf("redis del: %w", err)
	}

	return len(keys), nil
}

// Delete removes a mirrored entry.
func (m *Mirror) Delete(ctx context.Context, key string) error {
	if err := m.redis.Del(ctx, mirrorKeyPrefix+key).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
