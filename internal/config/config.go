package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Auth      AuthConfig      `yaml:"auth"`
	Provider  ProviderConfig  `yaml:"provider"`
	Billing   BillingConfig   `yaml:"billing"`
	Support   SupportConfig   `yaml:"support"`
	Lock      LockConfig      `yaml:"lock"`
	Poller    PollerConfig    `yaml:"poller"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Catalog   []CatalogEntry  `yaml:"catalog"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps" env:"RATELIMIT_RPS"`
	Burst int `yaml:"burst" env:"RATELIMIT_BURST"`
}

type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL        time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL"`
	MaxFailedLogins int           `yaml:"max_failed_logins" env:"AUTH_MAX_FAILED_LOGINS"`
	Lockout         time.Duration `yaml:"lockout" env:"AUTH_LOCKOUT"`
}

// ProviderConfig points at the remote SMM order API.
type ProviderConfig struct {
	BaseURL string        `yaml:"base_url" env:"SMM_API_URL"`
	APIKey  string        `yaml:"api_key" env:"SMM_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"SMM_API_TIMEOUT"`
}

type BillingConfig struct {
	MinDeposit Amount `yaml:"min_deposit"`
	// PlatformAccountEmail names the house account credited with transfer
	// commissions. Empty means commissions are not credited anywhere.
	PlatformAccountEmail string `yaml:"platform_account_email" env:"PLATFORM_ACCOUNT_EMAIL"`
}

type SupportConfig struct {
	WhatsApp string `yaml:"whatsapp" env:"SUPPORT_WHATSAPP"`
	Email    string `yaml:"email" env:"SUPPORT_EMAIL"`
}

type LockConfig struct {
	TTL           time.Duration `yaml:"ttl" env:"LOCK_TTL"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"LOCK_RETRY_INTERVAL"`
}

type PollerConfig struct {
	Interval time.Duration `yaml:"interval" env:"POLLER_INTERVAL"`
	// SyncInterval paces order status polling against the provider.
	SyncInterval time.Duration `yaml:"sync_interval" env:"POLLER_SYNC_INTERVAL"`
	BatchSize    int           `yaml:"batch_size" env:"POLLER_BATCH_SIZE"`
}

// BootstrapConfig seeds the first admin account on startup.
type BootstrapConfig struct {
	AdminEmail    string `yaml:"admin_email" env:"BOOTSTRAP_ADMIN_EMAIL"`
	AdminPassword string `yaml:"admin_password" env:"BOOTSTRAP_ADMIN_PASSWORD"`
	AdminName     string `yaml:"admin_name" env:"BOOTSTRAP_ADMIN_NAME"`
}

// CatalogEntry is one orderable service and the unit price charged for it.
type CatalogEntry struct {
	ServiceID string `yaml:"service_id" json:"service_id"`
	Name      string `yaml:"name" json:"name"`
	Platform  string `yaml:"platform" json:"platform"`
	Type      string `yaml:"type" json:"type"`
	UnitPrice Amount `yaml:"unit_price" json:"unit_price"`
	Min       int    `yaml:"min" json:"min"`
	Max       int    `yaml:"max" json:"max"`
}

// Amount is a decimal that decodes from yaml scalars.
type Amount struct {
	decimal.Decimal
}

// UnmarshalYAML accepts both quoted and bare numbers.
func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q", node.Line, node.Value)
	}
	a.Decimal = d
	return nil
}

// Load reads yaml file, then overlays environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes yaml bytes and applies env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "panel.notifications"
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.MaxFailedLogins == 0 {
		c.Auth.MaxFailedLogins = 5
	}
	if c.Auth.Lockout == 0 {
		c.Auth.Lockout = 15 * time.Minute
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 15 * time.Second
	}
	if c.Billing.MinDeposit.IsZero() {
		c.Billing.MinDeposit = Amount{decimal.NewFromInt(10)}
	}
	if c.Lock.TTL == 0 {
		c.Lock.TTL = 30 * time.Second
	}
	if c.Lock.RetryInterval == 0 {
		c.Lock.RetryInterval = 50 * time.Millisecond
	}
	if c.Poller.Interval == 0 {
		c.Poller.Interval = time.Second
	}
	if c.Poller.SyncInterval == 0 {
		c.Poller.SyncInterval = time.Minute
	}
	if c.Poller.BatchSize == 0 {
		c.Poller.BatchSize = 100
	}
}

// Validate checks values the service cannot start without.
func (c *Config) Validate() error {
	if c.Postgres.DSN == "" {
		return errors.New("postgres dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth jwt_secret is required")
	}
	if c.Provider.BaseURL == "" {
		return errors.New("provider base_url is required")
	}
	if c.Lock.TTL <= c.Provider.Timeout {
		return fmt.Errorf("lock ttl %s must exceed provider timeout %s", c.Lock.TTL, c.Provider.Timeout)
	}
	seen := make(map[string]bool, len(c.Catalog))
	for _, e := range c.Catalog {
		if e.ServiceID == "" {
			return errors.New("catalog entry without service_id")
		}
		if seen[e.ServiceID] {
			return fmt.Errorf("duplicate catalog service_id %q", e.ServiceID)
		}
		seen[e.ServiceID] = true
		if !e.UnitPrice.IsPositive() {
			return fmt.Errorf("catalog %q: unit_price must be positive", e.ServiceID)
		}
		if e.Min <= 0 || e.Max < e.Min {
			return fmt.Errorf("catalog %q: invalid min/max", e.ServiceID)
		}
	}
	return nil
}
