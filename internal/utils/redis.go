package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/support-service/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionKeyPrefix    = "support:session:"
	analyticsVersionKey = "support:analytics:version"
	analyticsKeyPrefix  = "support:analytics:"
)

// NewRedisClient parses a redis:// URL and checks the server answers before
// handing the client out.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// RedisCache is the best-effort read cache for session documents and computed
// analytics. Failures are logged and treated as misses.
//
// Session entries have two writers. Reads fill an empty slot with FillSession
// (SET NX), writes overwrite it with the document they just committed through
// SetSession. A read that raced a write can therefore never put back the state
// the write replaced.
type RedisCache struct {
	rdb          *redis.Client
	sessionTTL   time.Duration
	analyticsTTL time.Duration
	logger       *zap.Logger
}

func NewRedisCache(rdb *redis.Client, sessionTTL, analyticsTTL time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, sessionTTL: sessionTTL, analyticsTTL: analyticsTTL, logger: logger}
}

func (c *RedisCache) GetSession(ctx context.Context, id string) (*models.Session, bool) {
	var s models.Session
	if !c.getJSON(ctx, sessionKeyPrefix+id, &s) {
		return nil, false
	}
	return &s, true
}

func (c *RedisCache) FillSession(ctx context.Context, s *models.Session) {
	data, err := json.Marshal(s)
	if err == nil {
		err = c.rdb.SetNX(ctx, sessionKeyPrefix+s.ID, data, c.sessionTTL).Err()
	}
	if err != nil {
		c.logger.Warn("[CACHE] Session fill failed", zap.String("session_id", s.ID), zap.Error(err))
	}
}

func (c *RedisCache) SetSession(ctx context.Context, s *models.Session) {
	if err := c.setJSON(ctx, sessionKeyPrefix+s.ID, s, c.sessionTTL); err != nil {
		c.logger.Warn("[CACHE] Session write failed", zap.String("session_id", s.ID), zap.Error(err))
		// a failed overwrite must not leave the old document behind
		c.InvalidateSession(ctx, s.ID)
	}
}

func (c *RedisCache) InvalidateSession(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		c.logger.Warn("[CACHE] Session invalidation failed", zap.String("session_id", id), zap.Error(err))
	}
}

// AnalyticsKey namespaces a computed aggregate under the current version, so a
// single INCR invalidates every cached window.
func (c *RedisCache) AnalyticsKey(ctx context.Context, parts ...string) string {
	version, err := c.rdb.Get(ctx, analyticsVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("[CACHE] Analytics version read failed", zap.Error(err))
	}
	key := fmt.Sprintf("%sv%d", analyticsKeyPrefix, version)
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func (c *RedisCache) GetAnalytics(ctx context.Context, key string, dest interface{}) bool {
	return c.getJSON(ctx, key, dest)
}

func (c *RedisCache) SetAnalytics(ctx context.Context, key string, value interface{}) {
	if err := c.setJSON(ctx, key, value, c.analyticsTTL); err != nil {
		c.logger.Warn("[CACHE] Analytics write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) InvalidateAnalytics(ctx context.Context) {
	if err := c.rdb.Incr(ctx, analyticsVersionKey).Err(); err != nil {
		c.logger.Warn("[CACHE] Analytics invalidation failed", zap.Error(err))
	}
}

func (c *RedisCache) getJSON(ctx context.Context, key string, dest interface{}) bool {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		err = json.Unmarshal(val, dest)
	}
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("[CACHE] Read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

func (c *RedisCache) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}
