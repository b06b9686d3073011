package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment (and .env when present)
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Feed    FeedConfig
	Sync    SyncConfig
	Trade   TradeConfig
	Cache   CacheConfig
	Logging LoggingConfig
	Seed    SeedConfig
}

type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	GinMode         string        `env:"GIN_MODE" envDefault:"debug"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type DBConfig struct {
	URL             string        `env:"DATABASE_URL"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5433"`
	User            string        `env:"DB_USER" envDefault:"trader"`
	Password        string        `env:"DB_PASSWORD" envDefault:"trading123"`
	Name            string        `env:"DB_NAME" envDefault:"trading_db"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// DSN returns DATABASE_URL when set, otherwise a postgres:// URL built from the parts.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.Name,
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

type FeedConfig struct {
	BaseURL string        `env:"FEED_BASE_URL" envDefault:"https://api.binance.com/api/v3"`
	Timeout time.Duration `env:"FEED_TIMEOUT" envDefault:"10s"`
}

type SyncConfig struct {
	Enabled  bool          `env:"SYNC_ENABLED" envDefault:"true"`
	Interval time.Duration `env:"SYNC_INTERVAL" envDefault:"5s"`
}

type TradeConfig struct {
	Workers   int `env:"TRADE_WORKERS" envDefault:"5"`
	QueueSize int `env:"TRADE_QUEUE_SIZE" envDefault:"100"`
}

type CacheConfig struct {
	CandleTTL time.Duration `env:"CANDLE_CACHE_TTL" envDefault:"30s"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
	Output string `env:"LOG_OUTPUT" envDefault:"stdout"`
}

type SeedConfig struct {
	AdminUsername string `env:"SEED_ADMIN_USERNAME" envDefault:"admin"`
	AdminEmail    string `env:"SEED_ADMIN_EMAIL" envDefault:"admin@tradingsim.com"`
	AdminPassword string `env:"SEED_ADMIN_PASSWORD" envDefault:"admin123"`
}

// Load reads .env files (missing ones are ignored) and parses the environment.
func Load(files ...string) (Config, error) {
	// godotenv never overrides variables that are already set
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive, got %s", c.Sync.Interval)
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("FEED_TIMEOUT must be positive, got %s", c.Feed.Timeout)
	}
	if c.Trade.Workers < 1 {
		return fmt.Errorf("TRADE_WORKERS must be at least 1, got %d", c.Trade.Workers)
	}
	if c.Trade.QueueSize < 0 {
		return fmt.Errorf("TRADE_QUEUE_SIZE must not be negative, got %d", c.Trade.QueueSize)
	}
	return nil
}
