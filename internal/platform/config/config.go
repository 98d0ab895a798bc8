// Package config loads service configuration from defaults, an optional
// YAML file, and TEAMREG_* environment variables (in increasing precedence).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"teamreg/internal/platform/database"
	"teamreg/internal/platform/tracing"
	"teamreg/pkg/platform/middleware/metadata"
)

// EnvPrefix namespaces environment overrides, e.g. TEAMREG_SERVER_ADDR.
const EnvPrefix = "TEAMREG"

// Rate limit and audit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	SinkLog   = "log"
	SinkKafka = "kafka"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Tracing   tracing.Config  `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	AdminToken        string        `mapstructure:"admin_token"`
	AdminTokenHash    string        `mapstructure:"admin_token_hash"` // bcrypt; wins over AdminToken
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty means clients connect directly.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // memory, postgres, pgx, sqlite
	DSN             string        `mapstructure:"dsn"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Options converts pool settings for database.OpenPostgres.
func (d DatabaseConfig) Options() database.Options {
	return database.Options{
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
	}
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RateLimitConfig holds per client IP limits for each endpoint class.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"` // memory or redis
	Submit  int           `mapstructure:"submit"`
	Lookup  int           `mapstructure:"lookup"`
	Admin   int           `mapstructure:"admin"`
	Window  time.Duration `mapstructure:"window"`
}

type AuditConfig struct {
	Sink    string   `mapstructure:"sink"` // log or kafka
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Buffer  int      `mapstructure:"buffer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          database.DriverMemory,
			SQLitePath:      "teamreg.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Backend: BackendMemory,
			Submit:  10,
			Lookup:  60,
			Admin:   120,
			Window:  time.Minute,
		},
		Audit: AuditConfig{
			Sink:   SinkLog,
			Topic:  "teamreg.audit",
			Buffer: 256,
		},
		Tracing: tracing.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// SetDefaults registers every default with v so environment overrides are
// seen by Unmarshal even when no config file sets the key.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.admin_token", d.Server.AdminToken)
	v.SetDefault("server.admin_token_hash", d.Server.AdminTokenHash)
	v.SetDefault("server.read_header_timeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.trusted_proxies", d.Server.TrustedProxies)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.sqlite_path", d.Database.SQLitePath)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("redis.pool_size", d.Redis.PoolSize)
	v.SetDefault("redis.min_idle_conns", d.Redis.MinIdleConns)
	v.SetDefault("redis.dial_timeout", d.Redis.DialTimeout)
	v.SetDefault("redis.read_timeout", d.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", d.Redis.WriteTimeout)
	v.SetDefault("ratelimit.enabled", d.RateLimit.Enabled)
	v.SetDefault("ratelimit.backend", d.RateLimit.Backend)
	v.SetDefault("ratelimit.submit", d.RateLimit.Submit)
	v.SetDefault("ratelimit.lookup", d.RateLimit.Lookup)
	v.SetDefault("ratelimit.admin", d.RateLimit.Admin)
	v.SetDefault("ratelimit.window", d.RateLimit.Window)
	v.SetDefault("audit.sink", d.Audit.Sink)
	v.SetDefault("audit.brokers", d.Audit.Brokers)
	v.SetDefault("audit.topic", d.Audit.Topic)
	v.SetDefault("audit.buffer", d.Audit.Buffer)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Bind wires TEAMREG_* environment variables into v.
func Bind(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads defaults, any config file already set on v, and the environment.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	Bind(v)

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements. All problems are reported.
func (c *Config) Validate() error {
	var errs []error

	for _, proxy := range c.Server.TrustedProxies {
		if _, err := metadata.ParseProxy(strings.TrimSpace(proxy)); err != nil {
			errs = append(errs, fmt.Errorf("server.trusted_proxies: %w", err))
		}
	}

	switch c.Database.Driver {
	case database.DriverMemory:
	case database.DriverPostgres, database.DriverPgx:
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver))
		}
	case database.DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("database.sqlite_path is required for driver \"sqlite\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for ratelimit.backend \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ratelimit.backend %q", c.RateLimit.Backend))
	}
	if c.RateLimit.Enabled && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be positive"))
	}

	switch c.Audit.Sink {
	case SinkLog:
	case SinkKafka:
		if len(c.Audit.Brokers) == 0 {
			errs = append(errs, errors.New("audit.brokers is required for audit.sink \"kafka\""))
		}
		if c.Audit.Topic == "" {
			errs = append(errs, errors.New("audit.topic is required for audit.sink \"kafka\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown audit.sink %q", c.Audit.Sink))
	}
	if c.Audit.Buffer <= 0 {
		errs = append(errs, errors.New("audit.buffer must be positive"))
	}

	exporters := []string{tracing.ExporterNone, tracing.ExporterStdout, tracing.ExporterOTLP}
	if c.Tracing.Enabled && !slices.Contains(exporters, c.Tracing.Exporter) {
		errs = append(errs, fmt.Errorf("unknown tracing.exporter %q", c.Tracing.Exporter))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("invalid log.level %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// HasAdminAuth reports whether an admin token or token hash is configured.
func (s ServerConfig) HasAdminAuth() bool {
	return s.AdminToken != "" || s.AdminTokenHash != ""
}
