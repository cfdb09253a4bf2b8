// Package arche assembles the locale resolution service: a durable
// store of translated messages, a TTL cache in front of it and a
// resolver that walks a language fallback chain so every UI label
// request yields a displayable string.
package arche

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pitabwire/util"

	"github.com/huhn511/arche/cache"
	"github.com/huhn511/arche/config"
	"github.com/huhn511/arche/datastore"
	"github.com/huhn511/arche/datastore/pool"
	"github.com/huhn511/arche/events"
	"github.com/huhn511/arche/localization"
	"github.com/huhn511/arche/workerpool"
)

type contextKey string

func (c contextKey) String() string {
	return "arche/" + string(c)
}

const ctxKeyService = contextKey("serviceKey")

// Service holds every long-lived component of the application together.
// One instance lives for the lifetime of the process.
type Service struct {
	name   string
	logger *util.LogEntry

	configuration any

	dbPool        pool.Pool
	repository    datastore.LocaleRepository
	cacheManager  cache.Manager
	workManager   workerpool.Manager
	localeManager localization.Manager
	resolver      *localization.Resolver
	seeder        *localization.Seeder

	publisher  events.Publisher
	subscriber events.Subscriber
	recorder   *events.MissingTranslationRecorder

	handler           http.Handler
	driver            *httpDriver
	cancelFunc        context.CancelFunc
	errorChannelMutex sync.Mutex
	errorChannel      chan error

	cleanup   func(ctx context.Context)
	startOnce sync.Once
	stopMutex sync.Mutex
}

type Option func(ctx context.Context, service *Service)

// NewService creates a new instance of Service with the name and supplied options.
// Internally it calls NewServiceWithContext and creates a background context for use.
func NewService(name string, opts ...Option) (context.Context, *Service) {
	ctx := context.Background()
	return NewServiceWithContext(ctx, name, opts...)
}

// NewServiceWithContext creates a new instance of Service with context, name and supplied options.
func NewServiceWithContext(ctx context.Context, name string, opts ...Option) (context.Context, *Service) {
	// Create a new context that listens for OS signals for graceful shutdown.
	ctx, signalCancelFunc := signal.NotifyContext(ctx,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	defaultLogger := util.Log(ctx)
	ctx = util.ContextWithLogger(ctx, defaultLogger)

	service := &Service{
		name:         name,
		cancelFunc:   signalCancelFunc,
		errorChannel: make(chan error, 1),
		logger:       defaultLogger,
	}

	service.Init(ctx, opts...)

	ctx = SvcToContext(ctx, service)
	if service.configuration != nil {
		ctx = config.ToContext(ctx, service.configuration)
	}
	ctx = util.ContextWithLogger(ctx, service.logger)
	return ctx, service
}

// SvcToContext pushes a service instance into the supplied context for easier propagation.
func SvcToContext(ctx context.Context, service *Service) context.Context {
	return context.WithValue(ctx, ctxKeyService, service)
}

// Svc obtains a service instance being propagated through the context.
func Svc(ctx context.Context) *Service {
	service, ok := ctx.Value(ctxKeyService).(*Service)
	if !ok {
		return nil
	}

	return service
}

// Name gets the name of the service. Its the first argument used when NewService is called.
func (s *Service) Name() string {
	return s.name
}

// Config obtains the configuration object supplied at setup.
func (s *Service) Config() any {
	return s.configuration
}

// Log returns the service logger bound to the supplied context.
func (s *Service) Log(ctx context.Context) *util.LogEntry {
	return s.logger.WithContext(ctx)
}

// LocaleManager exposes the administrative surface over locale entries.
func (s *Service) LocaleManager() localization.Manager {
	return s.localeManager
}

// Resolver exposes the message resolver.
func (s *Service) Resolver() *localization.Resolver {
	return s.resolver
}

// H returns the assembled HTTP handler, mainly for tests.
func (s *Service) H() http.Handler {
	return s.handler
}

// Init evaluates the options provided as arguments and supplies them to the service object.
func (s *Service) Init(ctx context.Context, opts ...Option) {
	for _, opt := range opts {
		opt(ctx, s)
	}
}

// AddCleanupMethod Adds user defined functions to be run just before completely stopping the service.
func (s *Service) AddCleanupMethod(f func(ctx context.Context)) {
	s.stopMutex.Lock()
	defer s.stopMutex.Unlock()

	if s.cleanup == nil {
		s.cleanup = f
		return
	}

	old := s.cleanup
	s.cleanup = func(ctx context.Context) { f(ctx); old(ctx) }
}

// MigrateDatastore applies pending schema and data migrations then returns.
func (s *Service) MigrateDatastore(ctx context.Context) error {
	migrationPath := ""
	if cfg, ok := s.Config().(config.ConfigurationDatabase); ok {
		migrationPath = cfg.GetDatabaseMigrationPath()
	}

	return s.dbPool.Migrate(ctx, migrationPath)
}

// Run brings up the event pipeline and the HTTP server, then blocks
// until the context is cancelled or a component fails.
func (s *Service) Run(ctx context.Context, address string) error {
	if s.publisher != nil {
		if err := s.publisher.Init(ctx); err != nil {
			return err
		}
	}
	if s.subscriber != nil {
		if err := s.subscriber.Init(ctx); err != nil {
			return err
		}
	}

	if s.seeder != nil {
		if err := s.seeder.Seed(ctx); err != nil {
			return err
		}
	}

	go func(ctx context.Context) {
		srvErr := s.initServer(ctx, address)
		s.sendStopError(ctx, srvErr)
	}(ctx)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err0 := <-s.errorChannel:
		if err0 != nil {
			s.Log(ctx).WithError(err0).Error("system exit in error")
			s.Stop(ctx)
		} else {
			s.Log(ctx).Debug("system exit")
		}
		return err0
	}
}

func (s *Service) determineHTTPPort(currentPort string) string {
	if currentPort != "" {
		return currentPort
	}

	cfg, ok := s.Config().(config.ConfigurationPorts)
	if !ok {
		return ":8080"
	}
	return cfg.HTTPPort()
}

// initServer assembles the router and serves it.
func (s *Service) initServer(ctx context.Context, httpPort string) error {
	httpPort = s.determineHTTPPort(httpPort)

	s.startOnce.Do(func() {
		s.handler = s.newRouter(ctx)
		s.driver = newHTTPDriver(ctx)
	})

	return s.driver.ListenAndServe(httpPort, s.handler)
}

// Stop Used to gracefully run clean up methods ensuring all requests that
// were being handled are completed well without interuptions.
func (s *Service) Stop(ctx context.Context) {
	if !s.stopMutex.TryLock() {
		return
	}
	defer s.stopMutex.Unlock()

	s.Log(ctx).Info("service stopping")

	// Cancel the service's main context.
	if s.cancelFunc != nil {
		s.logger.Info("canceling service context")
		s.cancelFunc()
	}

	if s.driver != nil {
		_ = s.driver.Shutdown(ctx)
	}

	// Call user-defined cleanup functions first.
	if s.cleanup != nil {
		s.cleanup(ctx)
	}

	if s.subscriber != nil {
		if err := s.subscriber.Stop(ctx); err != nil {
			s.logger.WithError(err).Warn("could not stop event subscriber")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Stop(ctx); err != nil {
			s.logger.WithError(err).Warn("could not stop event publisher")
		}
	}

	if s.cacheManager != nil {
		s.logger.Info("closing caches")
		if err := s.cacheManager.Close(); err != nil {
			s.logger.WithError(err).Warn("could not close caches")
		}
	}

	if s.workManager != nil {
		s.logger.Info("shutting down worker pool")
		s.workManager.Shutdown(ctx)
	}

	if s.dbPool != nil {
		s.logger.Info("closing database connections")
		s.dbPool.Close(ctx)
	}

	// Close the internal error channel to signal Run to exit if it's blocked on it.
	s.errorChannelMutex.Lock()
	defer s.errorChannelMutex.Unlock()
	select {
	case _, ok := <-s.errorChannel:
		if !ok {
			return
		}
	default:
	}
	close(s.errorChannel)
}

func (s *Service) sendStopError(ctx context.Context, err error) {
	s.errorChannelMutex.Lock()
	defer s.errorChannelMutex.Unlock()

	select {
	case <-ctx.Done():
		return
	case <-s.errorChannel:
		// channel is already closed hence avoid
		return
	default:
		s.errorChannel <- err
	}
}
