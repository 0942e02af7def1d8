// Package config loads service configuration from an optional config.yaml
// and STENCIL_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"stencil/internal/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g. STENCIL_DATABASE_URL.
const EnvPrefix = "STENCIL"

// Config holds all service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Log       LogConfig       `mapstructure:"log"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Shutdown  ShutdownConfig  `mapstructure:"shutdown"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CatalogConfig configures the remote template catalog.
type CatalogConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	ReleasedVersion string        `mapstructure:"released_version"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"` // 0 disables the limit
}

// AnalyticsConfig names the Redis list analytics events travel through.
type AnalyticsConfig struct {
	QueueName string `mapstructure:"queue_name"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // "json" or "text"
	Source bool   `mapstructure:"source"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ShutdownConfig bounds graceful shutdown.
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration. Files named config.yaml are looked up in paths,
// or in the working directory and /etc/stencil when none are given.
// Environment variables override file values.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(paths) == 0 {
		paths = []string{".", "/etc/stencil/"}
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "config.load", "error reading config file")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config.load", "error unmarshaling config")
	}

	cfg.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Catalog.BaseURL), "/")
	cfg.CORS.AllowedOrigins = splitOrigins(cfg.CORS.AllowedOrigins)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("catalog.base_url", "https://cs.appsmith.com")
	v.SetDefault("catalog.released_version", "UNKNOWN")
	v.SetDefault("catalog.http_timeout", "0s")
	v.SetDefault("analytics.queue_name", "stencil:analytics")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.source", false)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:8081", "http://localhost:5173"})
	v.SetDefault("shutdown.timeout", "30s")
}

// Validate reports the first missing setting a running process needs.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Database.URL) == "":
		return errors.ValidationField("database.url", "database url is required")
	case strings.TrimSpace(c.Redis.Addr) == "":
		return errors.ValidationField("redis.addr", "redis address is required")
	case c.Catalog.BaseURL == "":
		return errors.ValidationField("catalog.base_url", "catalog base url is required")
	case c.Catalog.HTTPTimeout < 0:
		return errors.ValidationField("catalog.http_timeout", "catalog http timeout cannot be negative")
	case strings.TrimSpace(c.Analytics.QueueName) == "":
		return errors.ValidationField("analytics.queue_name", "analytics queue name is required")
	}
	return nil
}

// splitOrigins accepts both list values and a single comma separated string.
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, p := range strings.Split(item, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// StaticVersion reports a fixed released version to the catalog client.
type StaticVersion string

// ReleasedVersion returns v.
func (v StaticVersion) ReleasedVersion() string {
	return string(v)
}
