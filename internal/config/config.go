package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	BattleNet BattleNetConfig `yaml:"battlenet"`
	Guild     GuildConfig     `yaml:"guild"`
	Sync      SyncConfig      `yaml:"sync"`
	Discord   DiscordConfig   `yaml:"discord"`
	Kafka     KafkaConfig     `yaml:"kafka"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	BaseURL      string        `yaml:"base_url"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

// StorageConfig selects and configures the record store backend.
type StorageConfig struct {
	// Driver is one of "redis", "postgres", "memory".
	Driver   string         `yaml:"driver"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// BattleNetConfig holds Battle.net API and OAuth configuration
type BattleNetConfig struct {
	Region            string        `yaml:"region"`
	Locale            string        `yaml:"locale"`
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	RequestBurst      int           `yaml:"request_burst"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`

	// Overrides for tests and regional deployments. Empty means the
	// region-derived defaults.
	APIURL   string `yaml:"api_url"`
	OAuthURL string `yaml:"oauth_url"`
}

// GuildConfig identifies the guild whose roster bounds the leaderboard.
type GuildConfig struct {
	Slug string `yaml:"slug"`
	// Realms are the slugs of the guild's home realms. Characters outside
	// these realms never enter the cache.
	Realms []string `yaml:"realms"`
}

// SyncConfig holds the refresh pipeline configuration
type SyncConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	// RunOnStart runs a full refresh cycle immediately when the pipeline
	// starts instead of waiting out the first interval. Off by default so
	// a restart never double-publishes; deployments without an external
	// cron hitting the refresh command can turn it on.
	RunOnStart bool `yaml:"run_on_start"`
	// CharacterRefreshWindow is the minimum interval between two character
	// refreshes for the same player. Policy, not law: it exists to protect
	// the upstream API from repeated logins.
	CharacterRefreshWindow time.Duration `yaml:"character_refresh_window"`
}

// DiscordConfig holds outbound webhook configuration
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	// SignInURL is appended to each published leaderboard message so guild
	// members can register themselves.
	SignInURL string `yaml:"sign_in_url"`
}

// KafkaConfig holds the optional entry-event publisher configuration
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = 7 * 24 * time.Hour
	}

	// Storage defaults
	if c.Storage.Driver == "" {
		c.Storage.Driver = "redis"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.PoolSize == 0 {
		c.Storage.Redis.PoolSize = 50
	}
	if c.Storage.Redis.MinIdleConns == 0 {
		c.Storage.Redis.MinIdleConns = 5
	}
	if c.Storage.Redis.DialTimeout == 0 {
		c.Storage.Redis.DialTimeout = 5 * time.Second
	}
	if c.Storage.Redis.ReadTimeout == 0 {
		c.Storage.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Storage.Redis.WriteTimeout == 0 {
		c.Storage.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Storage.Postgres.Host == "" {
		c.Storage.Postgres.Host = "localhost"
	}
	if c.Storage.Postgres.Port == 0 {
		c.Storage.Postgres.Port = 5432
	}
	if c.Storage.Postgres.MaxConnections == 0 {
		c.Storage.Postgres.MaxConnections = 20
	}
	if c.Storage.Postgres.MinConnections == 0 {
		c.Storage.Postgres.MinConnections = 2
	}
	if c.Storage.Postgres.MaxConnLifetime == 0 {
		c.Storage.Postgres.MaxConnLifetime = time.Hour
	}

	// Battle.net defaults
	if c.BattleNet.Region == "" {
		c.BattleNet.Region = "us"
	}
	if c.BattleNet.Locale == "" {
		c.BattleNet.Locale = "en_US"
	}
	if c.BattleNet.RequestsPerSecond == 0 {
		// Blizzard allows 100 req/s per client; stay well under it.
		c.BattleNet.RequestsPerSecond = 10
	}
	if c.BattleNet.RequestBurst == 0 {
		c.BattleNet.RequestBurst = 5
	}
	if c.BattleNet.HTTPTimeout == 0 {
		c.BattleNet.HTTPTimeout = 15 * time.Second
	}
	if c.BattleNet.APIURL == "" {
		c.BattleNet.APIURL = fmt.Sprintf("https://%s.api.blizzard.com", c.BattleNet.Region)
	}
	if c.BattleNet.OAuthURL == "" {
		c.BattleNet.OAuthURL = "https://oauth.battle.net"
	}

	// Guild defaults (AR Club on Shandris/Bronzebeard)
	if c.Guild.Slug == "" {
		c.Guild.Slug = "ar-club"
	}
	if len(c.Guild.Realms) == 0 {
		c.Guild.Realms = []string{"shandris", "bronzebeard"}
	}

	// Sync defaults: weekly pipeline, hourly per-player refresh gate
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 7 * 24 * time.Hour
	}
	if c.Sync.CharacterRefreshWindow == 0 {
		c.Sync.CharacterRefreshWindow = time.Hour
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "leaderboard-entries"
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Sync.Enabled = true
	return cfg
}
