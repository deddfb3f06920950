package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the orchestrator. It supports a
// three-layer priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithName("forge"),
//	    WithRedisURL("redis://localhost:6379"),
//	    WithOTELEndpoint("http://localhost:4317"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	Name      string `json:"name" yaml:"name" env:"FORGE_NAME"`
	ID        string `json:"id" yaml:"id" env:"FORGE_ID"`
	Namespace string `json:"namespace" yaml:"namespace" env:"FORGE_NAMESPACE" default:"default"`

	Ladder     LadderConfig     `json:"ladder" yaml:"ladder"`
	JobTable   JobTableConfig   `json:"job_table" yaml:"job_table"`
	Validation ValidationConfig `json:"validation" yaml:"validation"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Telemetry  TelemetryConfig  `json:"telemetry" yaml:"telemetry"`
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`

	Development DevelopmentConfig `json:"development" yaml:"development"`

	// Logger instance for configuration operations (excluded from JSON/YAML)
	logger Logger `json:"-" yaml:"-"`
}

// LadderConfig points at the retry/fallback ladder's rung definitions and
// bounds the number of attempts a single job may spend descending them.
type LadderConfig struct {
	RungsPath  string `json:"rungs_path" yaml:"rungs_path" env:"FORGE_LADDER_RUNGS_PATH" default:"generation/ladder.yaml"`
	MaxRetries int    `json:"max_retries" yaml:"max_retries" env:"FORGE_LADDER_MAX_RETRIES" default:"4"`
}

// JobTableConfig bounds the in-process job table the orchestrator keeps.
type JobTableConfig struct {
	MaxJobs           int           `json:"max_jobs" yaml:"max_jobs" env:"FORGE_MAX_JOBS" default:"100"`
	JobRetention      time.Duration `json:"job_retention" yaml:"job_retention" env:"FORGE_JOB_RETENTION" default:"1h"`
	DefaultJobTimeout time.Duration `json:"default_job_timeout" yaml:"default_job_timeout" env:"FORGE_DEFAULT_JOB_TIMEOUT" default:"5m"`
}

// ValidationConfig points at the validator's per-artifact-type rule tables.
type ValidationConfig struct {
	RulesDir string `json:"rules_dir" yaml:"rules_dir" env:"FORGE_VALIDATION_RULES_DIR" default:"validation/rules"`
}

// CacheConfig configures the Redis-backed Memory used by the context
// provider's caching decorator. There is no "inmemory" provider option
// here: the context cache is either backed by Redis or absent (a
// CachingContextProvider wrapping nothing).
type CacheConfig struct {
	RedisURL   string        `json:"redis_url" yaml:"redis_url" env:"FORGE_REDIS_URL,REDIS_URL"`
	Namespace  string        `json:"namespace" yaml:"namespace" env:"FORGE_CACHE_NAMESPACE" default:"forge:context"`
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl" env:"FORGE_CACHE_TTL" default:"1h"`
}

// TelemetryConfig contains observability configuration for metrics and
// distributed tracing. Optional module - telemetry is only initialized
// when Enabled=true. Supports OpenTelemetry (OTLP) protocol.
type TelemetryConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" env:"FORGE_TELEMETRY_ENABLED" default:"false"`
	Endpoint       string  `json:"endpoint" yaml:"endpoint" env:"FORGE_OTLP_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string  `json:"service_name" yaml:"service_name" env:"FORGE_TELEMETRY_SERVICE_NAME,OTEL_SERVICE_NAME"`
	MetricsEnabled bool    `json:"metrics_enabled" yaml:"metrics_enabled" env:"FORGE_TELEMETRY_METRICS" default:"true"`
	TracingEnabled bool    `json:"tracing_enabled" yaml:"tracing_enabled" env:"FORGE_TELEMETRY_TRACING" default:"true"`
	SamplingRate   float64 `json:"sampling_rate" yaml:"sampling_rate" env:"FORGE_TELEMETRY_SAMPLING_RATE" default:"1.0"`
	Insecure       bool    `json:"insecure" yaml:"insecure" env:"FORGE_TELEMETRY_INSECURE" default:"true"`
}

// ResilienceConfig contains fault tolerance and resilience patterns
// configuration, shared by every ladder rung's circuit breaker.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	Retry          RetryConfig          `json:"retry" yaml:"retry"`
	Timeout        TimeoutConfig        `json:"timeout" yaml:"timeout"`
}

// CircuitBreakerConfig defines circuit breaker pattern settings. The
// circuit breaker prevents a persistently failing ladder rung from being
// retried on every job; after Timeout it allows a probe through.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled" yaml:"enabled" env:"FORGE_CB_ENABLED" default:"true"`
	Threshold        int           `json:"threshold" yaml:"threshold" env:"FORGE_CB_THRESHOLD" default:"5"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" env:"FORGE_CB_TIMEOUT" default:"30s"`
	HalfOpenRequests int           `json:"half_open_requests" yaml:"half_open_requests" env:"FORGE_CB_HALF_OPEN" default:"3"`
}

// RetryConfig defines retry pattern settings with exponential backoff.
// Formula: interval = min(InitialInterval * (Multiplier ^ attempt), MaxInterval)
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts" yaml:"max_attempts" env:"FORGE_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialInterval time.Duration `json:"initial_interval" yaml:"initial_interval" env:"FORGE_RETRY_INITIAL_INTERVAL" default:"1s"`
	MaxInterval     time.Duration `json:"max_interval" yaml:"max_interval" env:"FORGE_RETRY_MAX_INTERVAL" default:"30s"`
	Multiplier      float64       `json:"multiplier" yaml:"multiplier" env:"FORGE_RETRY_MULTIPLIER" default:"2.0"`
}

// TimeoutConfig defines timeout settings for model backend calls.
type TimeoutConfig struct {
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout" env:"FORGE_TIMEOUT_DEFAULT" default:"30s"`
	MaxTimeout     time.Duration `json:"max_timeout" yaml:"max_timeout" env:"FORGE_TIMEOUT_MAX" default:"5m"`
}

// LoggingConfig contains logging configuration. Supports structured (JSON)
// and human-readable (text) output formats, and a Backend switch between
// the built-in stdlib-JSON writer and a zap-backed sink.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"FORGE_LOG_LEVEL" default:"info"`
	Format     string `json:"format" yaml:"format" env:"FORGE_LOG_FORMAT" default:"json"`
	Backend    string `json:"backend" yaml:"backend" env:"FORGE_LOG_BACKEND" default:"stdlib"`
	Output     string `json:"output" yaml:"output" env:"FORGE_LOG_OUTPUT" default:"stdout"`
	TimeFormat string `json:"time_format" yaml:"time_format" env:"FORGE_LOG_TIME_FORMAT" default:"2006-01-02T15:04:05.999999999Z07:00"`
}

// DevelopmentConfig contains settings for local development and testing.
// When Enabled=true, the orchestrator uses development-friendly defaults:
// human-readable logs and a mock model backend instead of local/cloud
// models.
//
// WARNING: Never enable development mode in production!
type DevelopmentConfig struct {
	Enabled       bool `json:"enabled" yaml:"enabled" env:"FORGE_DEV_MODE" default:"false"`
	MockBackend   bool `json:"mock_backend" yaml:"mock_backend" env:"FORGE_MOCK_BACKEND" default:"false"`
	DebugLogging  bool `json:"debug_logging" yaml:"debug_logging" env:"FORGE_DEBUG" default:"false"`
	PrettyLogs    bool `json:"pretty_logs" yaml:"pretty_logs" env:"FORGE_PRETTY_LOGS" default:"false"`
}

// Option is a functional option for configuring the orchestrator.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults. These
// defaults can be overridden using functional options or environment
// variables.
func DefaultConfig() *Config {
	cfg := &Config{
		Name:      "forge",
		Namespace: "default",
		Ladder: LadderConfig{
			RungsPath:  "generation/ladder.yaml",
			MaxRetries: DefaultMaxRetries,
		},
		JobTable: JobTableConfig{
			MaxJobs:           DefaultMaxJobs,
			JobRetention:      DefaultJobRetention,
			DefaultJobTimeout: 5 * time.Minute,
		},
		Validation: ValidationConfig{
			RulesDir: "validation/rules",
		},
		Cache: CacheConfig{
			Namespace:  "forge:context",
			DefaultTTL: 1 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			MetricsEnabled: true,
			TracingEnabled: true,
			SamplingRate:   1.0,
			Insecure:       true,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				Threshold:        5,
				Timeout:          30 * time.Second,
				HalfOpenRequests: 3,
			},
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 1 * time.Second,
				MaxInterval:     30 * time.Second,
				Multiplier:      2.0,
			},
			Timeout: TimeoutConfig{
				DefaultTimeout: 30 * time.Second,
				MaxTimeout:     5 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Backend:    "stdlib",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
		Development: DevelopmentConfig{
			Enabled:      false,
			MockBackend:  false,
			DebugLogging: false,
			PrettyLogs:   false,
		},
	}

	cfg.DetectEnvironment()

	return cfg
}

// DetectEnvironment adjusts a handful of defaults when running without an
// explicit FORGE_DEV_MODE setting, favoring human-readable local logs over
// the production JSON default.
func (c *Config) DetectEnvironment() {
	if os.Getenv(EnvDevMode) == "" && os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
		c.Development.Enabled = true
		c.Development.PrettyLogs = true
		c.Logging.Format = "text"
	}
}

// LoadFromEnv loads configuration from environment variables and validates
// the result. Environment variables take precedence over defaults but are
// overridden by functional options.
func (c *Config) LoadFromEnv() error {
	if c.logger != nil {
		c.logger.Info("loading configuration from environment", map[string]interface{}{
			"config_source": "environment_variables",
		})
	}

	if v := os.Getenv("FORGE_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("FORGE_ID"); v != "" {
		c.ID = v
	}
	if v := os.Getenv(EnvNamespace); v != "" {
		c.Namespace = v
	}

	if v := os.Getenv("FORGE_LADDER_RUNGS_PATH"); v != "" {
		c.Ladder.RungsPath = v
	}
	if v := os.Getenv("FORGE_LADDER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ladder.MaxRetries = n
		}
	}

	if v := os.Getenv("FORGE_MAX_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.JobTable.MaxJobs = n
		}
	}
	if v := os.Getenv("FORGE_JOB_RETENTION"); v != "" {
		if d, err := parseDuration(v); err == nil {
			c.JobTable.JobRetention = d
		}
	}
	if v := os.Getenv("FORGE_DEFAULT_JOB_TIMEOUT"); v != "" {
		if d, err := parseDuration(v); err == nil {
			c.JobTable.DefaultJobTimeout = d
		}
	}

	if v := os.Getenv("FORGE_VALIDATION_RULES_DIR"); v != "" {
		c.Validation.RulesDir = v
	}

	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Cache.RedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
	if v := os.Getenv("FORGE_CACHE_NAMESPACE"); v != "" {
		c.Cache.Namespace = v
	}
	if v := os.Getenv("FORGE_CACHE_TTL"); v != "" {
		if d, err := parseDuration(v); err == nil {
			c.Cache.DefaultTTL = d
		}
	}

	if v := os.Getenv("FORGE_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("FORGE_TELEMETRY_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Name
	}

	if v := os.Getenv("FORGE_CB_ENABLED"); v != "" {
		c.Resilience.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("FORGE_CB_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.CircuitBreaker.Threshold = n
		}
	}
	if v := os.Getenv("FORGE_CB_TIMEOUT"); v != "" {
		if d, err := parseDuration(v); err == nil {
			c.Resilience.CircuitBreaker.Timeout = d
		}
	}
	if v := os.Getenv("FORGE_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.Retry.MaxAttempts = n
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FORGE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvLogBackend); v != "" {
		c.Logging.Backend = v
	}

	if v := os.Getenv(EnvDevMode); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.Development.PrettyLogs = true
			c.Logging.Level = "debug"
			c.Logging.Format = "text"
		}
	}
	if v := os.Getenv("FORGE_MOCK_BACKEND"); v != "" {
		c.Development.MockBackend = parseBool(v)
	}
	if v := os.Getenv("FORGE_DEBUG"); v != "" {
		c.Development.DebugLogging = parseBool(v)
		if c.Development.DebugLogging {
			c.Logging.Level = "debug"
		}
	}

	if err := c.Validate(); err != nil {
		if c.logger != nil {
			c.logger.Error("configuration validation failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return err
	}

	if c.logger != nil {
		c.logger.Info("configuration loading completed", map[string]interface{}{
			"namespace":         c.Namespace,
			"logging_level":     c.Logging.Level,
			"development_mode":  c.Development.Enabled,
			"telemetry_enabled": c.Telemetry.Enabled,
		})
	}

	return nil
}

// parseDuration accepts both the stdlib's "1h30m" grammar and the compact
// forms str2duration adds ("1d", "2w") for operators writing config by hand.
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	return str2duration.ParseDuration(s)
}

// LoadFromFile loads configuration from a JSON or YAML file. File settings
// override environment variables but are overridden by functional options.
func (c *Config) LoadFromFile(path string) error {
	if c.logger != nil {
		c.logger.Info("loading configuration from file", map[string]interface{}{
			"file_path": path,
		})
	}

	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(filepath.Clean(cleanPath)) // nosec G304 -- path is validated
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}

	if c.logger != nil {
		c.logger.Info("configuration file loaded", map[string]interface{}{
			"file_path": cleanPath,
			"extension": ext,
		})
	}

	return nil
}

// Logger returns the logger NewConfig built from LoggingConfig, or the one
// supplied via WithLogger. Composition roots use this instead of building
// a second logger from the same config.
func (c *Config) Logger() Logger {
	return c.logger
}

// Validate checks if the configuration is valid and returns an error if
// not. Called automatically by NewConfig but can also be invoked manually
// after modifying configuration.
func (c *Config) Validate() error {
	if c.Name == "" {
		return &Error{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "name is required",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.JobTable.MaxJobs < 1 {
		return &Error{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid max_jobs: %d", c.JobTable.MaxJobs),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return &Error{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "telemetry endpoint is required when telemetry is enabled",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Logging.Backend != "stdlib" && c.Logging.Backend != "zap" {
		return &Error{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("unknown log backend: %s", c.Logging.Backend),
			Err:     ErrInvalidConfiguration,
		}
	}

	return nil
}

// Helper functions

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional Options

// WithName sets the orchestrator's name, used for logging and service
// naming. Defaults to "forge".
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithNamespace sets the logical namespace, used for multi-tenancy and
// environment separation (e.g. "production", "staging").
func WithNamespace(namespace string) Option {
	return func(c *Config) error {
		c.Namespace = namespace
		return nil
	}
}

// WithLadderRungs points the ladder loader at a rung-definition YAML file
// other than the default generation/ladder.yaml.
func WithLadderRungs(path string) Option {
	return func(c *Config) error {
		c.Ladder.RungsPath = path
		return nil
	}
}

// WithMaxRetries sets the ladder's total attempt budget per job.
func WithMaxRetries(n int) Option {
	return func(c *Config) error {
		c.Ladder.MaxRetries = n
		return nil
	}
}

// WithMaxJobs bounds the number of jobs the job table retains.
func WithMaxJobs(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return &Error{
				Op:      "WithMaxJobs",
				Kind:    "config",
				Message: fmt.Sprintf("invalid max_jobs: %d", n),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.JobTable.MaxJobs = n
		return nil
	}
}

// WithJobRetention sets how long terminal jobs remain queryable before the
// janitor evicts them.
func WithJobRetention(d time.Duration) Option {
	return func(c *Config) error {
		c.JobTable.JobRetention = d
		return nil
	}
}

// WithValidationRulesDir points the validator at a rule-table directory
// other than the default validation/rules.
func WithValidationRulesDir(dir string) Option {
	return func(c *Config) error {
		c.Validation.RulesDir = dir
		return nil
	}
}

// WithRedisURL sets the Redis connection URL backing the context
// provider's cache. Format: redis://[user:password@]host:port/db
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Cache.RedisURL = url
		return nil
	}
}

// WithOTELEndpoint sets the OpenTelemetry OTLP endpoint and enables
// telemetry. Equivalent to WithTelemetry(true, endpoint).
func WithOTELEndpoint(endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

// WithTelemetry enables or disables telemetry with the specified OTLP
// endpoint.
func WithTelemetry(enabled bool, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		c.Telemetry.Endpoint = endpoint
		if c.Telemetry.ServiceName == "" {
			c.Telemetry.ServiceName = c.Name
		}
		return nil
	}
}

// WithLogLevel sets the minimum logging level ("error", "warn", "info",
// "debug").
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging output format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithLogBackend switches the Logger's sink between the built-in
// stdlib-JSON writer ("stdlib") and a zap-backed sink ("zap").
func WithLogBackend(backend string) Option {
	return func(c *Config) error {
		c.Logging.Backend = backend
		return nil
	}
}

// WithCircuitBreaker enables the circuit breaker pattern for ladder rungs.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.CircuitBreaker.Enabled = true
		c.Resilience.CircuitBreaker.Threshold = threshold
		c.Resilience.CircuitBreaker.Timeout = timeout
		return nil
	}
}

// WithRetry configures automatic retry with exponential backoff for
// per-rung model backend calls.
func WithRetry(maxAttempts int, initialInterval time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.Retry.MaxAttempts = maxAttempts
		c.Resilience.Retry.InitialInterval = initialInterval
		return nil
	}
}

// WithConfigFile loads configuration from a JSON or YAML file at this
// option's position in the option list: the file overrides options that
// come before it, and options that come after it override the file.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithDevelopmentMode enables development mode with developer-friendly
// defaults: pretty logs, debug level, text format.
//
// WARNING: Never enable in production!
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
		return nil
	}
}

// WithMockBackend enables the mock model backend for testing without a
// local or cloud model.
func WithMockBackend(enabled bool) Option {
	return func(c *Config) error {
		c.Development.MockBackend = enabled
		return nil
	}
}

// WithLogger sets a logger for configuration operations. If not set,
// NewConfig constructs one from the final LoggingConfig: a ZapLogger when
// Backend is "zap", a ProductionLogger otherwise.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in the following order:
//  1. Default values from DefaultConfig()
//  2. Environment variables via LoadFromEnv()
//  3. Functional options (highest priority)
//  4. Validation via Validate()
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		var logger Logger
		if cfg.Logging.Backend == "zap" {
			zapLogger, err := NewZapLogger(cfg.Logging, cfg.Development, cfg.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to build zap logger: %w", err)
			}
			logger = zapLogger
		} else {
			logger = NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)
		}

		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}

		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ============================================================================
// ProductionLogger Implementation - Layered Observability Architecture
// ============================================================================

// ProductionLogger provides layered observability for orchestrator
// operations: human or JSON output, optional debug gating, and metrics
// emission via the global metrics registry once telemetry is wired up.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer

	// Metrics layer (enabled when telemetry available)
	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:          strings.ToLower(logging.Level),
		debug:          dev.DebugLogging || logging.Level == "debug",
		serviceName:    serviceName,
		format:         logging.Format,
		output:         output,
		metricsEnabled: false,
	}
}

// EnableMetrics is called by the telemetry package to enable the metrics
// layer once a registry is available.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

// Core logging implementation with all three layers
func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": "forge",
			"message":   msg,
		}

		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); len(baggage) > 0 {
				for k, v := range baggage {
					logEntry["trace."+k] = v
				}
			}
		}

		for k, v := range fields {
			logEntry[k] = v
		}

		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		traceInfo := ""
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
				traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
			}
		}

		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}

		fmt.Fprintf(p.output, "%s [%s] [%s] %s%s%s\n",
			timestamp, level, p.serviceName, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitForgeMetric(level, msg, fields, ctx)
	}
}

// Metrics emission with cardinality protection
func (p *ProductionLogger) emitForgeMetric(level, msg string, fields map[string]interface{}, ctx context.Context) {
	labels := []string{
		"level", level,
		"service", p.serviceName,
		"component", "forge",
	}

	for k, v := range fields {
		switch k {
		case "operation", "status", "error_type", "artifact_type", "provider":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}

	if ctx != nil {
		emitMetricWithContext(ctx, "forge.operations", 1.0, labels...)
	} else {
		emitMetric("forge.operations", 1.0, labels...)
	}
}

// Helper functions for weak coupling to telemetry
func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}
