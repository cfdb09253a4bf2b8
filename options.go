package arche

import (
	"context"

	"github.com/pitabwire/util"

	"github.com/huhn511/arche/cache"
	cacheredis "github.com/huhn511/arche/cache/redis"
	"github.com/huhn511/arche/config"
	"github.com/huhn511/arche/datastore"
	"github.com/huhn511/arche/datastore/pool"
	"github.com/huhn511/arche/events"
	"github.com/huhn511/arche/localization"
	"github.com/huhn511/arche/workerpool"
)

const messageCacheName = "locale-messages"

// WithConfig supplies the service configuration object.
func WithConfig(configuration any) Option {
	return func(_ context.Context, s *Service) {
		s.configuration = configuration
	}
}

// WithLogger initialises the structured logger from configuration.
func WithLogger(opts ...util.Option) Option {
	return func(ctx context.Context, s *Service) {
		if cfg, ok := s.Config().(config.ConfigurationLogLevel); ok {
			logLevel, err := util.ParseLevel(cfg.LoggingLevel())
			if err == nil {
				opts = append(opts, util.WithLogLevel(logLevel))
			}
			opts = append(opts,
				util.WithLogTimeFormat(cfg.LoggingTimeFormat()),
				util.WithLogNoColor(!cfg.LoggingColored()),
				util.WithLogStackTrace())
		}

		log := util.NewLogger(ctx, opts...)
		log.WithField("service", s.Name())
		s.logger = log
	}
}

// WithWorkerPool sets up the shared worker pool from configuration.
func WithWorkerPool() Option {
	return func(ctx context.Context, s *Service) {
		cfg, ok := s.Config().(config.ConfigurationWorkerPool)
		if !ok {
			cfg = &config.ConfigurationDefault{}
		}

		workManager, err := workerpool.NewManager(ctx, cfg)
		if err != nil {
			s.logger.WithError(err).Panic("could not create worker pool")
		}
		s.workManager = workManager
	}
}

// WithDatastore dials the configured primary and replica databases and
// builds the locale repository over them.
func WithDatastore() Option {
	return func(ctx context.Context, s *Service) {
		cfg, ok := s.Config().(config.ConfigurationDatabase)
		if !ok {
			s.logger.Panic("datastore requires a database configuration")
		}

		dbPool := pool.NewPool(ctx)
		connOpts := []pool.Option{
			pool.WithMaxOpen(cfg.GetMaxOpenConnections()),
			pool.WithMaxIdle(cfg.GetMaxIdleConnections()),
			pool.WithMaxLifetime(cfg.GetMaxConnectionLifeTimeInSeconds()),
			pool.WithTraceConfig(cfg),
		}

		for _, dsn := range cfg.GetDatabasePrimaryHostURL() {
			if err := dbPool.AddConnection(ctx, dsn, false, connOpts...); err != nil {
				s.logger.WithError(err).Panic("could not connect to primary database")
			}
		}
		for _, dsn := range cfg.GetDatabaseReplicaHostURL() {
			if err := dbPool.AddConnection(ctx, dsn, true, connOpts...); err != nil {
				s.logger.WithError(err).Panic("could not connect to replica database")
			}
		}

		s.dbPool = dbPool
		s.repository = datastore.NewLocaleRepository(dbPool, s.workManager)
	}
}

// WithCache registers the message cache, redis backed when a cache URI
// is configured and in-memory otherwise.
func WithCache() Option {
	return func(_ context.Context, s *Service) {
		cfg, ok := s.Config().(config.ConfigurationCache)
		if !ok {
			cfg = &config.ConfigurationDefault{}
		}

		if s.cacheManager == nil {
			s.cacheManager = cache.NewManager()
		}

		var raw cache.RawCache
		if uri := cfg.GetCacheURI(); uri != "" {
			redisCache, err := cacheredis.New(cacheredis.Options{Addr: uri})
			if err != nil {
				s.logger.WithError(err).Panic("could not connect to redis cache")
			}
			raw = redisCache
		} else {
			raw = cache.NewInMemoryCacheWithInterval(cfg.GetCacheSweepInterval())
		}

		s.cacheManager.AddCache(messageCacheName, raw)
	}
}

// WithEvents wires the locale event queue: a publisher fed by the
// resolver and a subscriber tallying missing translations.
func WithEvents() Option {
	return func(_ context.Context, s *Service) {
		cfg, ok := s.Config().(config.ConfigurationEvents)
		if !ok {
			cfg = &config.ConfigurationDefault{}
		}

		s.publisher = events.NewPublisher(cfg.GetEventsQueueURL())
		s.recorder = events.NewMissingTranslationRecorder()
		s.subscriber = events.NewSubscriber(s.workManager, cfg.GetEventsQueueURL(), s.recorder)
	}
}

// WithLocalization assembles the resolver and administrative manager on
// top of the repository and cache configured before it.
func WithLocalization() Option {
	return func(_ context.Context, s *Service) {
		cfg, ok := s.Config().(config.ConfigurationLocale)
		if !ok {
			cfg = &config.ConfigurationDefault{LocaleDefaultLanguage: "en"}
		}

		cacheCfg, ok := s.Config().(config.ConfigurationCache)
		if !ok {
			cacheCfg = &config.ConfigurationDefault{}
		}
		namespace := cacheCfg.GetCacheNamespace()

		var messageCache cache.Cache[localization.Key, string]
		if s.cacheManager != nil {
			messageCache, _ = cache.GetCache[localization.Key, string](
				s.cacheManager,
				messageCacheName,
				localization.CacheKeyFunc(namespace),
			)
		}

		var observer localization.Observer = localization.LoggingObserver{}
		if s.publisher != nil {
			observer = events.NewPublishingObserver(s.publisher, s.workManager, observer)
		}

		s.resolver = localization.NewResolver(
			s.repository,
			messageCache,
			observer,
			cfg.GetDefaultLanguage(),
			cacheCfg.GetCacheTTL(),
		)
		s.localeManager = localization.NewManager(s.repository, messageCache, s.resolver, namespace)
		s.seeder = localization.NewSeeder(
			s.localeManager,
			cfg.GetTranslationsDir(),
			cfg.GetDefaultLanguage(),
			cfg.GetLanguages()...,
		)
	}
}
