// Package config handles configuration loading for coinsync.
// It supports YAML config files, a .env file, and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    yaml:"server"`
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko" yaml:"coingecko"`
	Store     StoreConfig     `mapstructure:"store"     yaml:"store"`
	Seen      SeenConfig      `mapstructure:"seen"      yaml:"seen"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"  yaml:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CoinGeckoConfig holds price API settings.
type CoinGeckoConfig struct {
	BaseURL   string        `mapstructure:"base_url"   yaml:"base_url"`
	APIKey    string        `mapstructure:"api_key"    yaml:"api_key"`
	Pro       bool          `mapstructure:"pro"        yaml:"pro"` // send the pro header instead of the demo header
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`
	RateLimit int           `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per minute
}

// StoreConfig selects and configures the durable record store.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"     yaml:"backend"` // "airtable", "postgres", "memory"
	CoinsTable string `mapstructure:"coins_table" yaml:"coins_table"`
	DataTable  string `mapstructure:"data_table"  yaml:"data_table"`
	// DataMaxRecords caps GET /airtable-data; 0 returns the whole table.
	DataMaxRecords int            `mapstructure:"data_max_records" yaml:"data_max_records"`
	View           string         `mapstructure:"view"        yaml:"view"`
	Airtable       AirtableConfig `mapstructure:"airtable"    yaml:"airtable"`
	Postgres       PostgresConfig `mapstructure:"postgres"    yaml:"postgres"`
}

// AirtableConfig holds Airtable credentials.
type AirtableConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Token   string `mapstructure:"token"    yaml:"token"`
	BaseID  string `mapstructure:"base_id"  yaml:"base_id"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"               yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// SeenConfig selects where discovered coin identifiers are remembered.
type SeenConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend"` // "memory" or "redis"
	Redis   RedisConfig `mapstructure:"redis"   yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"     yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db"       yaml:"db"`
	Key      string `mapstructure:"key"      yaml:"key"`
}

// ScheduleConfig holds the background job cadence.
type ScheduleConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	SyncInterval    time.Duration `mapstructure:"sync_interval"    yaml:"sync_interval"`
	TopN            int           `mapstructure:"top_n"            yaml:"top_n"`
	SyncConcurrency int           `mapstructure:"sync_concurrency" yaml:"sync_concurrency"`
	JobTimeout      time.Duration `mapstructure:"job_timeout"      yaml:"job_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"` // console output instead of JSON
}

// Load reads the configuration from .env, config file and environment variables.
// Config file search order:
//  1. ./config/config.yaml
//  2. ~/.coinsync/config.yaml
//  3. /etc/coinsync/config.yaml
//
// Environment variables override config file values.
// Format: COINSYNC_<SECTION>_<KEY>, e.g., COINSYNC_STORE_AIRTABLE_TOKEN
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".coinsync"))
	v.AddConfigPath("/etc/coinsync")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("COINSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults mirrors the behaviour of the original deployment:
// port 3000, "Coins" table, "Grid view", 1m refresh and 10m sync.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko.api_key", "")
	v.SetDefault("coingecko.pro", false)
	v.SetDefault("coingecko.timeout", 30*time.Second)
	v.SetDefault("coingecko.rate_limit", 30)

	v.SetDefault("store.backend", "airtable")
	v.SetDefault("store.coins_table", "Coins")
	v.SetDefault("store.data_table", "Coins")
	v.SetDefault("store.data_max_records", 20)
	v.SetDefault("store.view", "Grid view")
	v.SetDefault("store.airtable.base_url", "https://api.airtable.com/v0")
	v.SetDefault("store.airtable.token", "")
	v.SetDefault("store.airtable.base_id", "")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.max_open_conns", 10)
	v.SetDefault("store.postgres.max_idle_conns", 5)
	v.SetDefault("store.postgres.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("seen.backend", "memory")
	v.SetDefault("seen.redis.addr", "localhost:6379")
	v.SetDefault("seen.redis.password", "")
	v.SetDefault("seen.redis.db", 0)
	v.SetDefault("seen.redis.key", "coinsync:seen")

	v.SetDefault("schedule.refresh_interval", time.Minute)
	v.SetDefault("schedule.sync_interval", 10*time.Minute)
	v.SetDefault("schedule.top_n", 20)
	v.SetDefault("schedule.sync_concurrency", 5)
	v.SetDefault("schedule.job_timeout", 5*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
}

// overrideFromEnv honours the variable names used by earlier deployments.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("AIRTABLE_TOKEN_KEY"); key != "" {
		cfg.Store.Airtable.Token = key
	}
	if id := os.Getenv("BASE_ID"); id != "" {
		cfg.Store.Airtable.BaseID = id
	}
	if key := os.Getenv("COINGECKO_API_KEY"); key != "" {
		cfg.CoinGecko.APIKey = key
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Store.Postgres.DSN = dsn
	}
}

// Validate checks value ranges and backend names. Credentials are not
// required here so that `status` and `version` work on a bare checkout.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "airtable", "postgres", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Seen.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown seen backend %q", c.Seen.Backend)
	}
	if c.Store.DataMaxRecords < 0 {
		return fmt.Errorf("store.data_max_records must not be negative, got %d", c.Store.DataMaxRecords)
	}
	if c.Schedule.RefreshInterval <= 0 || c.Schedule.SyncInterval <= 0 {
		return fmt.Errorf("schedule intervals must be positive")
	}
	if c.Schedule.TopN <= 0 {
		return fmt.Errorf("schedule.top_n must be positive, got %d", c.Schedule.TopN)
	}
	if c.Schedule.SyncConcurrency <= 0 {
		return fmt.Errorf("schedule.sync_concurrency must be positive, got %d", c.Schedule.SyncConcurrency)
	}
	return nil
}

// loadDotEnv loads a .env file into the process environment if present.
// Existing variables are not overwritten.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
