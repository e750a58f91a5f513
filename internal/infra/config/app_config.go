// Package config manages application configuration loading and validation.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type dayConcurrencyKind int

const (
	dayConcurrencyUnset dayConcurrencyKind = iota
	dayConcurrencyExplicit
	dayConcurrencyAuto
	dayConcurrencyDefault
)

// DefaultDayConcurrency bounds per-day fan-out when nothing else is configured.
const DefaultDayConcurrency = 4

// DayConcurrency is the per-day fan-out bound, given as a number, "auto" or "default".
type DayConcurrency struct {
	kind  dayConcurrencyKind
	value int
}

// FixedDayConcurrency returns an explicit setting.
func FixedDayConcurrency(n int) DayConcurrency {
	return DayConcurrency{kind: dayConcurrencyExplicit, value: n}
}

// UnmarshalYAML supports integer, "auto", and "default" values.
func (s *DayConcurrency) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = DayConcurrency{kind: dayConcurrencyUnset}
		return nil
	}
	text := strings.TrimSpace(node.Value)
	if text == "" {
		*s = DayConcurrency{kind: dayConcurrencyUnset}
		return nil
	}
	switch strings.ToLower(text) {
	case "auto":
		*s = DayConcurrency{kind: dayConcurrencyAuto}
		return nil
	case "default":
		*s = DayConcurrency{kind: dayConcurrencyDefault}
		return nil
	}
	val, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("dayConcurrency: invalid value %q", node.Value)
	}
	if val <= 0 {
		return fmt.Errorf("dayConcurrency: numeric value must be > 0")
	}
	*s = DayConcurrency{kind: dayConcurrencyExplicit, value: val}
	return nil
}

// MarshalYAML renders the setting back in its symbolic form.
func (s DayConcurrency) MarshalYAML() (any, error) {
	switch s.kind {
	case dayConcurrencyExplicit:
		return s.value, nil
	case dayConcurrencyAuto:
		return "auto", nil
	case dayConcurrencyDefault:
		return "default", nil
	default:
		return nil, nil
	}
}

// Resolve returns the effective worker count.
func (s DayConcurrency) Resolve() int {
	switch s.kind {
	case dayConcurrencyExplicit:
		return s.value
	case dayConcurrencyAuto:
		if cores := runtime.NumCPU(); cores > 0 {
			return cores
		}
		return DefaultDayConcurrency
	default:
		return DefaultDayConcurrency
	}
}

// RetrievalConfig bounds the orchestrator.
type RetrievalConfig struct {
	MaxPages       int            `yaml:"maxPages"`
	DayConcurrency DayConcurrency `yaml:"dayConcurrency"`
}

// HTTPConfig tunes the outbound transport.
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"maxRetries"`
	InitialBackoff    time.Duration `yaml:"initialBackoff"`
	MaxBackoff        time.Duration `yaml:"maxBackoff"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	UserAgent         string        `yaml:"userAgent"`
}

// AuthConfig tunes OAuth2 token refresh.
type AuthConfig struct {
	RefreshTimeout time.Duration `yaml:"refreshTimeout"`
	// ExpirySkew refreshes tokens this long before they expire.
	ExpirySkew time.Duration `yaml:"expirySkew"`
}

// RedisConfig enables the distributed refresh lock and token cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lockTtl"`
	CacheTTL time.Duration `yaml:"cacheTtl"`
}

// TelemetryConfig configures OTLP exporters (metrics only).
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// LoggingConfig selects the structured logger output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig controls PostgreSQL connectivity and migration behaviour.
type DatabaseConfig struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	RunMigrations     bool          `yaml:"runMigrations"`
	MigrationsDir     string        `yaml:"migrationsDir"`
}

func (c *DatabaseConfig) applyDefaults() {
	c.DSN = strings.TrimSpace(c.DSN)
	if c.DSN == "" {
		c.DSN = "postgresql://localhost:5432/shimmer"
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 8
	}
	if c.MinConns <= 0 {
		c.MinConns = 1
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
	if c.MaxConnIdleTime <= 0 {
		c.MaxConnIdleTime = 5 * time.Minute
	}
	if c.HealthCheckPeriod <= 0 {
		c.HealthCheckPeriod = 30 * time.Second
	}
	if strings.TrimSpace(c.MigrationsDir) == "" {
		c.MigrationsDir = "db/migrations"
	}
}

func (c DatabaseConfig) validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("dsn required")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("maxConns must be >0")
	}
	if c.MinConns < 0 {
		return fmt.Errorf("minConns must be >=0")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("minConns must be <= maxConns")
	}
	if c.MaxConnLifetime <= 0 {
		return fmt.Errorf("maxConnLifetime must be >0")
	}
	if c.MaxConnIdleTime <= 0 {
		return fmt.Errorf("maxConnIdleTime must be >0")
	}
	if c.HealthCheckPeriod <= 0 {
		return fmt.Errorf("healthCheckPeriod must be >0")
	}
	return nil
}

// AppConfig is the unified shimmer application configuration sourced from YAML.
type AppConfig struct {
	Environment Environment               `yaml:"environment"`
	Retrieval   RetrievalConfig           `yaml:"retrieval"`
	HTTP        HTTPConfig                `yaml:"http"`
	Auth        AuthConfig                `yaml:"auth"`
	Redis       RedisConfig               `yaml:"redis"`
	Database    DatabaseConfig            `yaml:"database"`
	Telemetry   TelemetryConfig           `yaml:"telemetry"`
	Logging     LoggingConfig             `yaml:"logging"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
}

// DefaultAppConfig returns a configuration with every default applied.
func DefaultAppConfig() AppConfig {
	cfg := AppConfig{Environment: EnvDev}
	if err := cfg.normalise(); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads and validates an AppConfig from the provided YAML file.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(bytes)
}

// Parse decodes, normalises and validates YAML configuration bytes.
func Parse(bytes []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Retrieval.MaxPages == 0 {
		c.Retrieval.MaxPages = 100
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 30 * time.Second
	}
	if c.HTTP.MaxRetries == 0 {
		c.HTTP.MaxRetries = 3
	}
	if c.HTTP.InitialBackoff <= 0 {
		c.HTTP.InitialBackoff = 250 * time.Millisecond
	}
	if c.HTTP.MaxBackoff <= 0 {
		c.HTTP.MaxBackoff = 5 * time.Second
	}
	if c.HTTP.Burst <= 0 {
		c.HTTP.Burst = 1
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "shimmer"
	}
	if c.Auth.RefreshTimeout <= 0 {
		c.Auth.RefreshTimeout = 15 * time.Second
	}
	if c.Auth.ExpirySkew <= 0 {
		c.Auth.ExpirySkew = time.Minute
	}
	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = 10 * time.Second
	}
	if c.Redis.CacheTTL <= 0 {
		c.Redis.CacheTTL = 5 * time.Minute
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "shimmer"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	c.Database.applyDefaults()
}

func (c *AppConfig) normalise() error {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	if c.Environment == "" {
		c.Environment = EnvDev
	}
	c.HTTP.UserAgent = strings.TrimSpace(c.HTTP.UserAgent)
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.applyDefaults()

	normalised := make(map[string]ProviderConfig, len(c.Providers))
	for key, value := range c.Providers {
		name := normalizeProviderName(key)
		if name == "" {
			return fmt.Errorf("provider name required")
		}
		if _, exists := normalised[name]; exists {
			return fmt.Errorf("duplicate provider name %q", name)
		}
		if err := value.normalise(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		normalised[name] = value
	}
	c.Providers = normalised
	return nil
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}

	if c.Retrieval.MaxPages <= 0 {
		return fmt.Errorf("retrieval maxPages must be >0")
	}
	if c.Retrieval.DayConcurrency.Resolve() <= 0 {
		return fmt.Errorf("retrieval dayConcurrency must be >0")
	}

	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http maxRetries must be >=0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http requestsPerSecond must be >=0")
	}
	if c.HTTP.InitialBackoff > c.HTTP.MaxBackoff {
		return fmt.Errorf("http initialBackoff must be <= maxBackoff")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr required when enabled")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be json or console")
	}
	if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		return fmt.Errorf("telemetry serviceName required")
	}

	if err := c.Database.validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	for name, provider := range c.Providers {
		if err := provider.validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}
	return nil
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
