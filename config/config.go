package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/jonwraymond/offlinecache/network"
	"github.com/jonwraymond/offlinecache/observe"
	"github.com/jonwraymond/offlinecache/secret"
	"github.com/jonwraymond/offlinecache/worker"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Store kinds.
const (
	StoreMemory = "memory"
	StoreDisk   = "disk"
	StoreSQLite = "sqlite"
	StoreS3     = "s3"
)

// StoreKinds lists the accepted store kinds.
var StoreKinds = []string{StoreMemory, StoreDisk, StoreSQLite, StoreS3}

// Config is the full daemon configuration.
type Config struct {
	Prefix   string   `yaml:"prefix" env:"PREFIX"`
	Version  string   `yaml:"version" env:"VERSION"`
	Manifest []string `yaml:"manifest" env:"MANIFEST" envSeparator:","`

	// Origin is the base URL manifest entries and misses are fetched from.
	Origin string `yaml:"origin" env:"ORIGIN"`

	// Listen is the HTTP listen address for serve.
	Listen string `yaml:"listen" env:"LISTEN"`

	Store   StoreConfig   `yaml:"store" envPrefix:"STORE_"`
	Fetch   FetchConfig   `yaml:"fetch" envPrefix:"FETCH_"`
	Auth    AuthConfig    `yaml:"auth" envPrefix:"AUTH_"`
	Observe ObserveConfig `yaml:"observe" envPrefix:"OBSERVE_"`
}

// StoreConfig selects the cache storage backend.
type StoreConfig struct {
	Kind string `yaml:"kind" env:"KIND"`

	// Path is the directory (disk) or database file (sqlite).
	Path string `yaml:"path" env:"PATH"`

	Bucket    string `yaml:"bucket" env:"BUCKET"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	Region    string `yaml:"region" env:"REGION"`

	// Endpoint overrides the S3 endpoint, for S3-compatible servers.
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// FetchConfig bounds calls to the origin.
type FetchConfig struct {
	Timeout            time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxConcurrent      int           `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	MaxWait            time.Duration `yaml:"max_wait" env:"MAX_WAIT"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	InstallConcurrency int           `yaml:"install_concurrency" env:"INSTALL_CONCURRENCY"`
	BreakerFailures    int           `yaml:"breaker_failures" env:"BREAKER_FAILURES"`
	BreakerReset       time.Duration `yaml:"breaker_reset" env:"BREAKER_RESET"`
}

// AuthConfig protects the admin routes. Key values may be secret
// references such as "secretref:env:OFFLINE_JWT_KEY".
type AuthConfig struct {
	Enabled  bool           `yaml:"enabled" env:"ENABLED"`
	JWTKey   string         `yaml:"jwt_key" env:"JWT_KEY"`
	Issuer   string         `yaml:"issuer" env:"ISSUER"`
	Audience string         `yaml:"audience" env:"AUDIENCE"`
	APIKeys  []APIKeyConfig `yaml:"api_keys" envPrefix:"API_KEYS_"`

	// SecretDir confines file secret references.
	SecretDir string `yaml:"secret_dir" env:"SECRET_DIR"`
}

// APIKeyConfig is one static admin key.
type APIKeyConfig struct {
	ID        string   `yaml:"id" env:"ID"`
	Key       string   `yaml:"key" env:"KEY"`
	Principal string   `yaml:"principal" env:"PRINCIPAL"`
	Roles     []string `yaml:"roles" env:"ROLES" envSeparator:","`
}

// ObserveConfig mirrors observe.Config.
type ObserveConfig struct {
	ServiceName string        `yaml:"service_name" env:"SERVICE_NAME"`
	Tracing     TracingConfig `yaml:"tracing" envPrefix:"TRACING_"`
	Metrics     MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
	Logging     LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled" env:"ENABLED"`
	Exporter  string  `yaml:"exporter" env:"EXPORTER"`
	Endpoint  string  `yaml:"endpoint" env:"ENDPOINT"`
	SamplePct float64 `yaml:"sample_pct" env:"SAMPLE_PCT"`
}

// MetricsConfig selects the metrics exporter. "prometheus" also serves
// /metrics.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Exporter string `yaml:"exporter" env:"EXPORTER"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Level   string `yaml:"level" env:"LEVEL"`
}

// DefaultManifest is the FoodFest application shell.
var DefaultManifest = []string{
	"./index.html",
	"./events.html",
	"./tickets.html",
	"./schedule.html",
	"./assets/css/style.css",
	"./assets/css/bootstrap.css",
	"./assets/css/tickets.css",
	"./dist/app.bundle.js",
	"./dist/events.bundle.js",
	"./dist/tickets.bundle.js",
	"./dist/schedule.bundle.js",
}

// Default returns a configuration that serves the default manifest from
// an in-memory store.
func Default() Config {
	c := Config{
		Prefix:   "FoodFest-",
		Version:  "version_01",
		Manifest: slices.Clone(DefaultManifest),
		Origin:   "http://localhost:8080/",
		Listen:   ":8443",
		Store: StoreConfig{
			Kind: StoreMemory,
			Path: "offlinecache-data",
		},
		Fetch: FetchConfig{
			Timeout:            10 * time.Second,
			MaxConcurrent:      32,
			MaxWait:            time.Second,
			MaxBodyBytes:       network.DefaultMaxBodyBytes,
			InstallConcurrency: 4,
			BreakerFailures:    5,
			BreakerReset:       30 * time.Second,
		},
	}
	c.Observe.ServiceName = "offlinecache"
	c.Observe.Tracing.Exporter = "none"
	c.Observe.Tracing.SamplePct = 1
	c.Observe.Metrics.Exporter = "none"
	c.Observe.Logging.Enabled = true
	c.Observe.Logging.Level = "info"
	return c
}

// Worker returns the cache identity and manifest.
func (c Config) Worker() worker.Config {
	return worker.Config{Prefix: c.Prefix, Version: c.Version, Manifest: slices.Clone(c.Manifest)}
}

// Guard returns the origin limits.
func (c Config) Guard() network.GuardConfig {
	return network.GuardConfig{
		Timeout:       c.Fetch.Timeout,
		MaxConcurrent: c.Fetch.MaxConcurrent,
		MaxWait:       c.Fetch.MaxWait,
		Breaker: network.BreakerConfig{
			MaxFailures:  c.Fetch.BreakerFailures,
			ResetTimeout: c.Fetch.BreakerReset,
		},
	}
}

// Telemetry returns the telemetry settings, tagged with the cache
// version.
func (c Config) Telemetry() observe.Config {
	o := c.Observe
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     c.Version,
		Tracing: observe.TracingConfig{
			Enabled:   o.Tracing.Enabled,
			Exporter:  o.Tracing.Exporter,
			Endpoint:  o.Tracing.Endpoint,
			SamplePct: o.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.Metrics.Enabled,
			Exporter: o.Metrics.Exporter,
			Endpoint: o.Metrics.Endpoint,
		},
		Logging: observe.LoggingConfig{
			Enabled: o.Logging.Enabled,
			Level:   o.Logging.Level,
		},
	}
}

// Validate checks every section and returns all problems joined.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if err := c.Worker().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	if u, err := url.Parse(c.Origin); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("origin must be an absolute http(s) URL, got %q", c.Origin)
	}
	if strings.TrimSpace(c.Listen) == "" {
		add("listen address is required")
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreDisk, StoreSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			add("store.path is required for %s", c.Store.Kind)
		}
	case StoreS3:
		if strings.TrimSpace(c.Store.Bucket) == "" {
			add("store.bucket is required for s3")
		}
	default:
		add("store.kind must be one of %s, got %q", strings.Join(StoreKinds, "|"), c.Store.Kind)
	}

	if c.Fetch.Timeout < 0 || c.Fetch.MaxWait < 0 || c.Fetch.BreakerReset < 0 {
		add("fetch durations must not be negative")
	}
	if c.Fetch.MaxConcurrent < 0 || c.Fetch.InstallConcurrency < 0 || c.Fetch.BreakerFailures < 0 || c.Fetch.MaxBodyBytes < 0 {
		add("fetch limits must not be negative")
	}

	if c.Auth.Enabled && strings.TrimSpace(c.Auth.JWTKey) == "" && len(c.Auth.APIKeys) == 0 {
		add("auth is enabled but neither jwt_key nor api_keys is set")
	}
	for i, k := range c.Auth.APIKeys {
		if strings.TrimSpace(k.Key) == "" || strings.TrimSpace(k.Principal) == "" {
			add("auth.api_keys[%d] needs key and principal", i)
		}
	}

	oc := c.Telemetry()
	if err := oc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// ResolveSecrets replaces environment variables and secret references in
// the origin and auth credentials.
func (c *Config) ResolveSecrets(ctx context.Context, r *secret.Resolver) error {
	var err error
	if c.Origin, err = r.ResolveValue(ctx, c.Origin); err != nil {
		return fmt.Errorf("config: origin: %w", err)
	}
	if c.Auth.JWTKey != "" {
		if c.Auth.JWTKey, err = r.ResolveValue(ctx, c.Auth.JWTKey); err != nil {
			return fmt.Errorf("config: auth.jwt_key: %w", err)
		}
	}
	for i := range c.Auth.APIKeys {
		if c.Auth.APIKeys[i].Key, err = r.ResolveValue(ctx, c.Auth.APIKeys[i].Key); err != nil {
			return fmt.Errorf("config: auth.api_keys[%d]: %w", i, err)
		}
	}
	return nil
}
