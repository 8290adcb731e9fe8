package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RSIPipeline/internal/logger"
	"RSIPipeline/internal/model"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const defaultCacheTTL = 6 * time.Hour

// RedisOptions configures the bar cache connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and pings the server.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// CachedProvider caches another provider's daily bars in Redis.
// Entries are keyed by calendar day so a new trading day misses the cache.
// Redis failures are logged and fall through to the wrapped provider.
type CachedProvider struct {
	next PriceProvider
	rdb  *goredis.Client
	ttl  time.Duration
	now  func() time.Time
	log  zerolog.Logger
}

// NewCachedProvider wraps next. A non-positive ttl uses six hours.
func NewCachedProvider(next PriceProvider, rdb *goredis.Client, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedProvider{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		now:  time.Now,
		log:  logger.Component("bar_cache"),
	}
}

func (c *CachedProvider) Name() string { return c.next.Name() + "+redis" }

func (c *CachedProvider) key(symbol string, lookback Lookback) string {
	return fmt.Sprintf("rsi:bars:%s:%s:%s:%s", c.next.Name(), symbol, lookback, c.now().UTC().Format("2006-01-02"))
}

func (c *CachedProvider) FetchDailyBars(ctx context.Context, symbol string, lookback Lookback) ([]model.PriceBar, error) {
	key := c.key(symbol, lookback)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var bars []model.PriceBar
		if jsonErr := json.Unmarshal(data, &bars); jsonErr == nil && len(bars) > 0 {
			return bars, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding unreadable cache entry")
	case !errors.Is(err, goredis.Nil):
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("cache read failed")
	}

	bars, err := c.next.FetchDailyBars(ctx, symbol, lookback)
	if err != nil || len(bars) == 0 {
		return bars, err
	}

	if data, err := json.Marshal(bars); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("cache write failed")
		}
	}
	return bars, nil
}
