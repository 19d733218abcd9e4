package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config represents the runtime configuration for the ovpnhub service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Reconciler  ReconcilerConfig  `mapstructure:"reconciler"`
	Profile     ProfileConfig     `mapstructure:"profile"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver       string       `mapstructure:"driver"`
	Path         string       `mapstructure:"path"`
	DSN          string       `mapstructure:"dsn"`
	MaxOpenConns int          `mapstructure:"max_open_conns"`
	Postgres     DBAuthConfig `mapstructure:"postgres"`
	MySQL        DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures the settings needed to verify tokens from the auth layer.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// ReconcilerConfig controls the session poll and presence reconciliation.
type ReconcilerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	StatusURL   string        `mapstructure:"status_url"`
	StatusToken string        `mapstructure:"status_token"`
	LeaseTTL    time.Duration `mapstructure:"lease_ttl"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
}

// ProfileConfig holds the fixed server parameters rendered into every client profile.
type ProfileConfig struct {
	RemoteHost     string `mapstructure:"remote_host"`
	RemotePort     int    `mapstructure:"remote_port"`
	Protocol       string `mapstructure:"protocol"`
	Cipher         string `mapstructure:"cipher"`
	AuthDigest     string `mapstructure:"auth_digest"`
	CredentialsDir string `mapstructure:"credentials_dir"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MaintenanceConfig schedules housekeeping jobs.
type MaintenanceConfig struct {
	LeaseCleanupSchedule string `mapstructure:"lease_cleanup_schedule"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("OVPNHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate reports every setting that would prevent the service from starting.
func (c *Config) Validate() error {
	var errs error
	if strings.TrimSpace(c.Auth.JWT.Secret) == "" {
		errs = multierr.Append(errs, errors.New("auth.jwt.secret is required"))
	}
	if strings.TrimSpace(c.Profile.RemoteHost) == "" {
		errs = multierr.Append(errs, errors.New("profile.remote_host is required"))
	}
	if c.Profile.RemotePort < 0 || c.Profile.RemotePort > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("profile.remote_port %d is out of range", c.Profile.RemotePort))
	}
	if c.Reconciler.Enabled {
		if strings.TrimSpace(c.Reconciler.StatusURL) == "" {
			errs = multierr.Append(errs, errors.New("reconciler.status_url is required when the reconciler is enabled"))
		}
		if c.Reconciler.Interval <= 0 {
			errs = multierr.Append(errs, errors.New("reconciler.interval must be positive"))
		}
	}
	errs = multierr.Append(errs, c.validateLease())
	if errs != nil {
		return fmt.Errorf("config: %w", errs)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/ovpnhub.sqlite")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("reconciler.enabled", true)
	v.SetDefault("reconciler.interval", "60s")
	v.SetDefault("reconciler.timeout", "10s")
	v.SetDefault("reconciler.status_url", "")
	v.SetDefault("reconciler.status_token", "")
	v.SetDefault("reconciler.lease_ttl", "0s")
	v.SetDefault("reconciler.stale_after", "10m")

	v.SetDefault("profile.remote_host", "")
	v.SetDefault("profile.remote_port", 1194)
	v.SetDefault("profile.protocol", "udp")
	v.SetDefault("profile.cipher", "AES-256-GCM")
	v.SetDefault("profile.auth_digest", "SHA256")
	v.SetDefault("profile.credentials_dir", "./data/pki")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)

	v.SetDefault("maintenance.lease_cleanup_schedule", "@hourly")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
