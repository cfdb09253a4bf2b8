package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type contextKey string

func (c contextKey) String() string {
	return "arche/config/" + string(c)
}

const ctxKeyConfiguration = contextKey("configurationKey")

// ToContext adds service configuration to the current supplied context.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext extracts service configuration from the supplied context if any exist.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FillEnv convenience method to fill a config object with environment data.
func FillEnv(v any) error {
	return env.Parse(v)
}

const (
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	// DefaultDatabaseRequestTimeout bounds a single store call when no
	// explicit setting is supplied.
	DefaultDatabaseRequestTimeout = 5 * time.Second
	defaultCacheTTL               = 5 * time.Minute
	defaultCacheSweepInterval     = 5 * time.Minute
)

type ConfigurationDefault struct {
	LogLevel      string `envDefault:"info"                      env:"LOG_LEVEL"       yaml:"log_level"`
	LogFormat     string `envDefault:"text"                      env:"LOG_FORMAT"      yaml:"log_format"`
	LogTimeFormat string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT" yaml:"log_time_format"`
	LogColored    bool   `envDefault:"true"                      env:"LOG_COLORED"     yaml:"log_colored"`

	ServiceName        string `envDefault:"arche" env:"SERVICE_NAME"        yaml:"service_name"`
	ServiceEnvironment string `envDefault:""      env:"SERVICE_ENVIRONMENT" yaml:"service_environment"`
	ServiceVersion     string `envDefault:""      env:"SERVICE_VERSION"     yaml:"service_version"`

	HTTPServerPort string `envDefault:":8080" env:"HTTP_PORT" yaml:"http_server_port"`

	DatabasePrimaryURL    []string `env:"DATABASE_URL"         yaml:"database_url"`
	DatabaseReplicaURL    []string `env:"REPLICA_DATABASE_URL" yaml:"replica_database_url"`
	DatabaseMigrate       bool     `env:"DO_MIGRATION"         yaml:"do_migration"   envDefault:"false"`
	DatabaseMigrationPath string   `env:"MIGRATION_PATH"       yaml:"migration_path" envDefault:"./migrations/0001"`

	DatabaseMaxIdleConnections           int `envDefault:"2"   env:"DATABASE_MAX_IDLE_CONNECTIONS"                yaml:"database_max_idle_connections"`
	DatabaseMaxOpenConnections           int `envDefault:"5"   env:"DATABASE_MAX_OPEN_CONNECTIONS"                yaml:"database_max_open_connections"`
	DatabaseMaxConnectionLifeTimeSeconds int `envDefault:"300" env:"DATABASE_MAX_CONNECTION_LIFE_TIME_IN_SECONDS" yaml:"database_max_connection_life_time_seconds"`

	DatabaseSlowQueryLogThreshold string `envDefault:"200ms" env:"DATABASE_SLOW_QUERY_THRESHOLD" yaml:"database_slow_query_threshold"`
	DatabaseRequestTimeout        string `envDefault:"5s" env:"DATABASE_REQUEST_TIMEOUT" yaml:"database_request_timeout"`

	CacheURI           string `envDefault:""       env:"CACHE_URI"            yaml:"cache_uri"`
	CacheNamespace     string `envDefault:"arche"  env:"CACHE_NAMESPACE"      yaml:"cache_namespace"`
	CacheTTL           string `envDefault:"5m"     env:"CACHE_TTL"            yaml:"cache_ttl"`
	CacheSweepInterval string `envDefault:"5m"     env:"CACHE_SWEEP_INTERVAL" yaml:"cache_sweep_interval"`

	LocaleDefaultLanguage string   `envDefault:"en"           env:"LOCALE_DEFAULT_LANGUAGE" yaml:"locale_default_language"`
	LocaleLanguages       []string `envDefault:"en"           env:"LOCALE_LANGUAGES"        yaml:"locale_languages"`
	LocaleTranslationsDir string   `envDefault:"localization" env:"LOCALE_TRANSLATIONS_DIR" yaml:"locale_translations_dir"`

	EventsQueueName string `envDefault:"arche.locale.events"       env:"EVENTS_QUEUE_NAME" yaml:"events_queue_name"`
	EventsQueueURL  string `envDefault:"mem://arche.locale.events" env:"EVENTS_QUEUE_URL"  yaml:"events_queue_url"`

	// Worker pool settings
	WorkerPoolCPUFactorForWorkerCount int    `envDefault:"10"  env:"WORKER_POOL_CPU_FACTOR_FOR_WORKER_COUNT" yaml:"worker_pool_cpu_factor_for_worker_count"`
	WorkerPoolCapacity                int    `envDefault:"100" env:"WORKER_POOL_CAPACITY"                    yaml:"worker_pool_capacity"`
	WorkerPoolCount                   int    `envDefault:"1"   env:"WORKER_POOL_COUNT"                       yaml:"worker_pool_count"`
	WorkerPoolExpiryDuration          string `envDefault:"1s"  env:"WORKER_POOL_EXPIRY_DURATION"             yaml:"worker_pool_expiry_duration"`
}

type ConfigurationService interface {
	Name() string
	Environment() string
	Version() string
}

var _ ConfigurationService = new(ConfigurationDefault)

func (c *ConfigurationDefault) Name() string {
	return c.ServiceName
}
func (c *ConfigurationDefault) Environment() string {
	return c.ServiceEnvironment
}
func (c *ConfigurationDefault) Version() string {
	return c.ServiceVersion
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingFormat() string
	LoggingTimeFormat() string
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingFormat() string {
	return c.LogFormat
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

type ConfigurationPorts interface {
	HTTPPort() string
}

var _ ConfigurationPorts = new(ConfigurationDefault)

func (c *ConfigurationDefault) HTTPPort() string {
	if i, err := strconv.Atoi(c.HTTPServerPort); err == nil && i > 0 {
		return fmt.Sprintf(":%s", strings.TrimSpace(c.HTTPServerPort))
	}

	if strings.HasPrefix(c.HTTPServerPort, ":") || strings.Contains(c.HTTPServerPort, ":") {
		return c.HTTPServerPort
	}

	return ":8080"
}

type ConfigurationDatabase interface {
	GetDatabasePrimaryHostURL() []string
	GetDatabaseReplicaHostURL() []string
	DoDatabaseMigrate() bool
	GetDatabaseMigrationPath() string
	GetMaxIdleConnections() int
	GetMaxOpenConnections() int
	GetMaxConnectionLifeTimeInSeconds() time.Duration
	GetDatabaseSlowQueryLogThreshold() time.Duration
	GetDatabaseRequestTimeout() time.Duration
}

var _ ConfigurationDatabase = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetDatabasePrimaryHostURL() []string {
	return c.DatabasePrimaryURL
}

func (c *ConfigurationDefault) GetDatabaseReplicaHostURL() []string {
	return c.DatabaseReplicaURL
}

func (c *ConfigurationDefault) DoDatabaseMigrate() bool {
	stdArgs := os.Args[1:]
	return c.DatabaseMigrate || (len(stdArgs) > 0 && stdArgs[0] == "migrate")
}

func (c *ConfigurationDefault) GetDatabaseMigrationPath() string {
	return c.DatabaseMigrationPath
}

func (c *ConfigurationDefault) GetMaxIdleConnections() int {
	return c.DatabaseMaxIdleConnections
}

func (c *ConfigurationDefault) GetMaxOpenConnections() int {
	return c.DatabaseMaxOpenConnections
}

func (c *ConfigurationDefault) GetMaxConnectionLifeTimeInSeconds() time.Duration {
	return time.Duration(c.DatabaseMaxConnectionLifeTimeSeconds) * time.Second
}

func (c *ConfigurationDefault) GetDatabaseSlowQueryLogThreshold() time.Duration {
	threshold, err := time.ParseDuration(c.DatabaseSlowQueryLogThreshold)
	if err != nil {
		threshold = DefaultSlowQueryThreshold
	}
	return threshold
}

// GetDatabaseRequestTimeout bounds how long a single store call may wait,
// including queueing for a pooled connection.
func (c *ConfigurationDefault) GetDatabaseRequestTimeout() time.Duration {
	timeout, err := time.ParseDuration(c.DatabaseRequestTimeout)
	if err != nil {
		timeout = DefaultDatabaseRequestTimeout
	}
	return timeout
}

type ConfigurationCache interface {
	GetCacheURI() string
	GetCacheNamespace() string
	GetCacheTTL() time.Duration
	GetCacheSweepInterval() time.Duration
}

var _ ConfigurationCache = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetCacheURI() string {
	return c.CacheURI
}

func (c *ConfigurationDefault) GetCacheNamespace() string {
	if strings.TrimSpace(c.CacheNamespace) == "" {
		return "arche"
	}
	return c.CacheNamespace
}

func (c *ConfigurationDefault) GetCacheTTL() time.Duration {
	if ttl, err := time.ParseDuration(c.CacheTTL); err == nil && ttl > 0 {
		return ttl
	}
	return defaultCacheTTL
}

func (c *ConfigurationDefault) GetCacheSweepInterval() time.Duration {
	if interval, err := time.ParseDuration(c.CacheSweepInterval); err == nil && interval > 0 {
		return interval
	}
	return defaultCacheSweepInterval
}

type ConfigurationLocale interface {
	GetDefaultLanguage() string
	GetLanguages() []string
	GetTranslationsDir() string
}

var _ ConfigurationLocale = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetDefaultLanguage() string {
	if strings.TrimSpace(c.LocaleDefaultLanguage) == "" {
		return "en"
	}
	return c.LocaleDefaultLanguage
}

func (c *ConfigurationDefault) GetLanguages() []string {
	if len(c.LocaleLanguages) == 0 {
		return []string{c.GetDefaultLanguage()}
	}
	return c.LocaleLanguages
}

func (c *ConfigurationDefault) GetTranslationsDir() string {
	return c.LocaleTranslationsDir
}

type ConfigurationEvents interface {
	GetEventsQueueName() string
	GetEventsQueueURL() string
}

var _ ConfigurationEvents = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetEventsQueueName() string {
	if strings.TrimSpace(c.EventsQueueName) == "" {
		return "arche.locale.events"
	}
	return c.EventsQueueName
}

func (c *ConfigurationDefault) GetEventsQueueURL() string {
	if strings.TrimSpace(c.EventsQueueURL) == "" {
		return "mem://arche.locale.events"
	}
	return c.EventsQueueURL
}

type ConfigurationWorkerPool interface {
	GetCPUFactor() int
	GetCapacity() int
	GetCount() int
	GetExpiryDuration() time.Duration
}

var _ ConfigurationWorkerPool = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetCPUFactor() int {
	return c.WorkerPoolCPUFactorForWorkerCount
}

func (c *ConfigurationDefault) GetCapacity() int {
	return c.WorkerPoolCapacity
}

func (c *ConfigurationDefault) GetCount() int {
	return c.WorkerPoolCount
}

func (c *ConfigurationDefault) GetExpiryDuration() time.Duration {
	if c.WorkerPoolExpiryDuration != "" {
		duration, err := time.ParseDuration(c.WorkerPoolExpiryDuration)
		if err == nil {
			return duration
		}
	}

	return time.Second
}
