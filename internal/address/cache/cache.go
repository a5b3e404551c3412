// Package cache keeps rendered profile views in Redis so repeated reads of
// /v1/me skip the account and address lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"sixd/internal/address/metrics"
	"sixd/internal/address/models"
	id "sixd/pkg/domain"
)

const (
	viewKeyPrefix = "sixd:view:"
	genKeyPrefix  = "sixd:viewgen:"

	DefaultTTL = 5 * time.Minute

	// genTTL bounds how long an invalidation is remembered. It must outlive
	// any single load.
	genTTL = time.Hour
)

// setIfCurrent writes the view only while the generation still matches the
// one read before loading, so a load that raced with Invalidate on any
// replica is dropped.
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// ViewCache is a read-through cache of profile views. Concurrent misses for
// one account share a single load. Redis failures degrade to a direct load.
type ViewCache struct {
	client  *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*ViewCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *ViewCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *ViewCache) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *ViewCache) {
		c.metrics = m
	}
}

func New(client *redis.Client, opts ...Option) *ViewCache {
	c := &ViewCache{
		client: client,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// GetOrLoad returns the cached view or calls load and stores its result.
// Load errors are returned unchanged and never cached.
func (c *ViewCache) GetOrLoad(ctx context.Context, accountID id.AccountID, load func(ctx context.Context) (*models.ProfileView, error)) (*models.ProfileView, error) {
	key := viewKeyPrefix + accountID.String()
	genKey := genKeyPrefix + accountID.String()

	if view, ok := c.get(ctx, key); ok {
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return view, nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		gen, genOK := c.generation(ctx, genKey)
		view, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if genOK {
			c.set(ctx, key, genKey, gen, view)
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	view := *v.(*models.ProfileView)
	return &view, nil
}

// Invalidate drops the cached view for accountID and bumps its generation
// in Redis, so no replica writes back a load that started before it.
func (c *ViewCache) Invalidate(ctx context.Context, accountID id.AccountID) error {
	key := viewKeyPrefix + accountID.String()
	genKey := genKeyPrefix + accountID.String()
	c.group.Forget(key)
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.Expire(ctx, genKey, genTTL)
		p.Del(ctx, key)
		return nil
	})
	return err
}

// generation reads the invalidation counter for a view. An unreadable
// counter reports false and the load is served without being cached.
func (c *ViewCache) generation(ctx context.Context, genKey string) (string, bool) {
	gen, err := c.client.Get(ctx, genKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	if err != nil {
		c.logger.WarnContext(ctx, "profile view generation read failed", "key", genKey, "error", err)
		return "", false
	}
	return gen, true
}

func (c *ViewCache) get(ctx context.Context, key string) (*models.ProfileView, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "profile view cache read failed", "key", key, "error", err)
		return nil, false
	}
	var entry viewEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.WarnContext(ctx, "discarding undecodable profile view", "key", key, "error", err)
		return nil, false
	}
	return entry.toView(), true
}

func (c *ViewCache) set(ctx context.Context, key, genKey, gen string, view *models.ProfileView) {
	raw, err := json.Marshal(fromView(view))
	if err != nil {
		return
	}
	written, err := setIfCurrent.Run(ctx, c.client, []string{key, genKey}, gen, raw, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.logger.WarnContext(ctx, "profile view cache write failed", "key", key, "error", err)
		return
	}
	if written == 0 {
		c.logger.DebugContext(ctx, "dropping profile view invalidated during load", "key", key)
	}
}
