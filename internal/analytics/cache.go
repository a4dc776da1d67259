package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheVersionKey    = "analytics:version"
	defaultLoadTimeout = 30 * time.Second
	// BumpChannel carries ledger version bumps between processes.
	BumpChannel = "ledger.bump"
)

// LookupObserver records whether a cached lookup was served from Redis.
type LookupObserver interface {
	ObserveCacheLookup(hit bool)
}

// Cache wraps Redis based caching with versioning controls.
type Cache struct {
	client      *redis.Client
	ttl         time.Duration
	loadTimeout time.Duration
	logger      *slog.Logger
	observer    LookupObserver
	group       singleflight.Group
}

// NewCache instantiates the cache helper. A zero ttl disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, loadTimeout: defaultLoadTimeout}
}

// WithLoadTimeout bounds a shared load that has outlived its callers.
func (c *Cache) WithLoadTimeout(d time.Duration) *Cache {
	if c != nil && d > 0 {
		c.loadTimeout = d
	}
	return c
}

// WithLogger attaches a logger used to report a degraded cache.
func (c *Cache) WithLogger(logger *slog.Logger) *Cache {
	if c != nil {
		c.logger = logger
	}
	return c
}

// WithObserver attaches a hit/miss observer.
func (c *Cache) WithObserver(observer LookupObserver) *Cache {
	if c != nil {
		c.observer = observer
	}
	return c
}

// Enabled reports whether lookups go through Redis.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader. Concurrent
// misses on the same key share one loader call, which runs detached from any
// single caller's cancellation and is bounded by the load timeout. A caller
// whose ctx ends stops waiting without aborting the shared load. Redis failures
// never fail the lookup; the loader result is returned uncached instead.
// Loader errors are returned unchanged.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if !c.Enabled() {
		return loadInto(ctx, dest, loader)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if jsonErr := json.Unmarshal(payload, dest); jsonErr == nil {
			c.observe(true)
			return nil
		}
		c.warn("discard undecodable cache entry", key, nil)
	} else if !errors.Is(err, redis.Nil) {
		c.warn("cache read failed", key, err)
		return loadInto(ctx, dest, loader)
	}

	c.observe(false)
	ch := c.group.DoChan(key, func() (any, error) {
		timeout := c.loadTimeout
		if timeout <= 0 {
			timeout = defaultLoadTimeout
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		value, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(loadCtx, key, raw, c.ttl).Err(); err != nil {
			c.warn("cache write failed", key, err)
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}

// Bump invalidates the cache by incrementing the global version and publishing an event.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bump notifications.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = BumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				c.applyBump(ctx, msg.Payload)
			}
		}
	}()
	return nil
}

// applyBump moves the local version forward, never backwards.
func (c *Cache) applyBump(ctx context.Context, payload string) {
	ver, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		_ = c.client.Incr(ctx, cacheVersionKey).Err()
		return
	}
	current, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == nil && current >= ver {
		return
	}
	_ = c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
}

func (c *Cache) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveCacheLookup(hit)
	}
}

func (c *Cache) warn(msg, key string, err error) {
	if c.logger == nil {
		return
	}
	attrs := []any{slog.String("key", key)}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	c.logger.Warn(msg, attrs...)
}

func loadInto(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// cacheKey scopes a metric to the calendar day of ref in ref's location.
// Calendar windows roll over at day boundaries and due horizons drift by less
// than a day under one key, so an entry lives until its TTL or the next Bump.
func cacheKey(metric string, ref time.Time, params ...string) []string {
	parts := make([]string, 0, len(params)+3)
	parts = append(parts, "analytics", metric)
	parts = append(parts, params...)
	return append(parts, ref.Format("20060102"))
}
