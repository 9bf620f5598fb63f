package commands

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/apps"
	"github.com/openhis/slotkit/internal/config"
	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/logging"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/swr"
	"github.com/openhis/slotkit/internal/web/cache"
	"github.com/openhis/slotkit/internal/web/ratelimit"
)

// app holds the collaborators a command runs against.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	level    zap.AtomicLevel
	cache    cache.Cache
	client   *resource.Client
	store    *swr.Store
	registry *extension.Registry
	handles  []*extension.Handle
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
	return logging.New(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON})
}

// newApp builds the backend client, the store with its backing cache and a
// registry with every module installed.
func newApp(opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, level, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, level: level}

	if a.cache, err = openCache(cfg.Cache); err != nil {
		return nil, err
	}

	clientOpts := []resource.Option{
		resource.WithTimeout(cfg.Backend.Timeout),
		resource.WithLogger(logger.Named("resource")),
	}
	if cfg.Backend.Username != "" {
		clientOpts = append(clientOpts, resource.WithBasicAuth(cfg.Backend.Username, cfg.Backend.Password))
	}
	if a.client, err = resource.NewClient(cfg.Backend.BaseURL, clientOpts...); err != nil {
		a.cache.Close()
		return nil, err
	}

	a.store = swr.NewStore(
		swr.WithFreshFor(cfg.Cache.FreshFor),
		swr.WithAbortIdle(cfg.Cache.AbortIdle),
		swr.WithBacking(a.cache, cfg.Cache.TTL),
		swr.WithLogger(logger.Named("swr")),
	)

	a.registry = extension.NewRegistry(extension.WithLogger(logger.Named("extension")))
	a.handles, err = apps.Install(a.registry, a.store, a.client)
	if err != nil {
		// Rejected extensions are skipped; the rest of the registry is usable.
		logger.Warn("some extensions were not registered", zap.Error(err))
	}
	logger.Debug("extensions installed", zap.Int("count", len(a.handles)))
	return a, nil
}

func openCache(cfg config.CacheConfig) (cache.Cache, error) {
	common := cache.CacheConfig{DefaultTTL: cfg.TTL, Prefix: cfg.Prefix}
	switch cfg.Backend {
	case config.CacheRedis:
		c, err := cache.NewRedisCacheWithConfig(cache.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			CacheConfig: common,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return c, nil
	default:
		return cache.NewMemoryCacheWithConfig(common), nil
	}
}

// newLimiter builds the rate limiter of the shell. It shares the redis
// connection of the cache when the cache backend is redis. A nil limiter
// disables limiting.
func (a *app) newLimiter() (ratelimit.Limiter, func(), error) {
	rl := a.cfg.RateLimit
	if rl.Requests == 0 {
		return nil, func() {}, nil
	}
	if rc, ok := a.cache.(*cache.RedisCache); ok {
		l, err := ratelimit.NewRedisLimiter(ratelimit.RedisLimiterConfig{
			Client: rc.Client(),
			Limit:  rl.Requests,
			Window: rl.Window,
			Prefix: a.cfg.Cache.Prefix + "ratelimit:",
		})
		return l, func() {}, err
	}
	tb := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{
		Capacity:        rl.Requests,
		Window:          rl.Window,
		CleanupInterval: 5 * time.Minute,
	})
	return tb, func() { tb.Close() }, nil
}

// Close stops the store and releases the cache.
func (a *app) Close() error {
	a.store.Close()
	_ = a.logger.Sync()
	return a.cache.Close()
}

// withApp runs fn with a fresh app and closes it afterwards.
func withApp(opts *globalOptions, fn func(*app) error) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
