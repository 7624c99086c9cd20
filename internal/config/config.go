package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither an explicit path nor ENGINE_CONFIG_PATH is set.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Backup     BackupConfig     `yaml:"backup"`
	Engine     EngineConfig     `yaml:"engine"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig selects the store. Driver is "sqlite3" (Path is used) or
// "postgres" (DSN is used).
type DatabaseConfig struct {
	Driver              string `yaml:"driver"`
	DSN                 string `yaml:"dsn"`
	Path                string `yaml:"path"`
	MaxOpenConns        int    `yaml:"max_open_conns"`
	QueryTimeoutSeconds int    `yaml:"query_timeout_seconds"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type APIConfig struct {
	Port      int             `yaml:"port"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type MonitoringConfig struct {
	HealthCheckPort   int  `yaml:"health_check_port"`
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type EngineConfig struct {
	SlotStepMinutes      int `yaml:"slot_step_minutes"`
	DefaultPageSize      int `yaml:"default_page_size"`
	CommitTimeoutSeconds int `yaml:"commit_timeout_seconds"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ResolvePath picks the config file: explicit path, then ENGINE_CONFIG_PATH,
// then DefaultPath.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("ENGINE_CONFIG_PATH"); env != "" {
		return env
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(ResolvePath(path))
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Database.Driver == "sqlite3" {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/studiobook.db"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8081
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

func (c *Config) QueryTimeout() time.Duration {
	if c.Database.QueryTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Database.QueryTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c *Config) SlotStep() time.Duration {
	if c.Engine.SlotStepMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Engine.SlotStepMinutes) * time.Minute
}

func (c *Config) DefaultPageSize() int {
	if c.Engine.DefaultPageSize <= 0 || c.Engine.DefaultPageSize > 50 {
		return 50
	}
	return c.Engine.DefaultPageSize
}

func (c *Config) CommitTimeout() time.Duration {
	if c.Engine.CommitTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Engine.CommitTimeoutSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

// RateLimit returns the per-tenant request rate and burst. A zero rate means
// unlimited.
func (c *Config) RateLimit() (float64, int) {
	burst := c.API.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}
	return c.API.RateLimit.RequestsPerSecond, burst
}
