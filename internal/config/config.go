package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Warehouse     WarehouseConfig
	ObjectStore   ObjectStoreConfig
	JobStore      JobStoreConfig
	Engine        EngineConfig
	Router        RouterConfig
	Worker        WorkerConfig
	Notify        NotifyConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type WarehouseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type JobStoreConfig struct {
	RedisURL string
	JobTTL   time.Duration
}

type EngineConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

type RouterConfig struct {
	RowThreshold  int
	ByteThreshold int
}

type WorkerConfig struct {
	Embedded         bool
	DequeueTimeout   time.Duration
	WatchdogInterval time.Duration
	StuckAfter       time.Duration
}

type NotifyConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("REPORTRUNNER_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid REPORTRUNNER_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "REPORTRUNNER_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "REPORTRUNNER_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "REPORTRUNNER_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "REPORTRUNNER_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_WAREHOUSE_DRIVER", &cfg.Warehouse.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_WAREHOUSE_DSN", &cfg.Warehouse.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "REPORTRUNNER_WAREHOUSE_MAX_OPEN_CONNS", &cfg.Warehouse.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "REPORTRUNNER_WAREHOUSE_MAX_IDLE_CONNS", &cfg.Warehouse.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "REPORTRUNNER_WAREHOUSE_CONN_MAX_IDLE_TIME", &cfg.Warehouse.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "REPORTRUNNER_WAREHOUSE_CONN_MAX_LIFETIME", &cfg.Warehouse.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "REPORTRUNNER_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "REPORTRUNNER_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_JOBSTORE_REDIS_URL", &cfg.JobStore.RedisURL); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "REPORTRUNNER_JOBSTORE_JOB_TTL", &cfg.JobStore.JobTTL); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "REPORTRUNNER_ENGINE_MAX_RETRIES", &cfg.Engine.MaxRetries); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "REPORTRUNNER_ENGINE_RETRY_BACKOFF", &cfg.Engine.RetryBackoff); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "REPORTRUNNER_ROUTER_ROW_THRESHOLD", &cfg.Router.RowThreshold); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "REPORTRUNNER_ROUTER_BYTE_THRESHOLD", &cfg.Router.ByteThreshold); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "REPORTRUNNER_WORKER_EMBEDDED", &cfg.Worker.Embedded); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "REPORTRUNNER_WORKER_DEQUEUE_TIMEOUT", &cfg.Worker.DequeueTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "REPORTRUNNER_WORKER_WATCHDOG_INTERVAL", &cfg.Worker.WatchdogInterval); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "REPORTRUNNER_WORKER_STUCK_AFTER", &cfg.Worker.StuckAfter); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_NOTIFY_WEBHOOK_URL", &cfg.Notify.WebhookURL); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "REPORTRUNNER_NOTIFY_TIMEOUT", &cfg.Notify.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "REPORTRUNNER_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "REPORTRUNNER_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "REPORTRUNNER_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "REPORTRUNNER_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Router.RowThreshold <= 0 {
		return Config{}, fmt.Errorf("router row threshold must be positive")
	}
	if cfg.Router.ByteThreshold <= 0 {
		return Config{}, fmt.Errorf("router byte threshold must be positive")
	}
	if cfg.Engine.MaxRetries < 0 {
		return Config{}, fmt.Errorf("engine max retries must be >= 0")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "reportrunner-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Warehouse: WarehouseConfig{
			Driver:          "duckdb",
			DSN:             "",
			MaxOpenConns:    8,
			MaxIdleConns:    8,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "reportrunner",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		JobStore: JobStoreConfig{
			RedisURL: "redis://localhost:6379/0",
			JobTTL:   30 * 24 * time.Hour,
		},
		Engine: EngineConfig{
			MaxRetries:   2,
			RetryBackoff: 250 * time.Millisecond,
		},
		Router: RouterConfig{
			RowThreshold:  1000,
			ByteThreshold: 5_000_000,
		},
		Worker: WorkerConfig{
			Embedded:         true,
			DequeueTimeout:   2 * time.Second,
			WatchdogInterval: time.Minute,
			StuckAfter:       15 * time.Minute,
		},
		Notify: NotifyConfig{
			WebhookURL: "",
			Timeout:    5 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.Warehouse.Driver = "postgres"
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
		cfg.Worker.Embedded = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
