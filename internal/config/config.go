package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Server       ServerConfig
	MongoDB      MongoConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Polling      PollingConfig
	Cache        CacheConfig
	Reaper       ReaperConfig
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

type ServerConfig struct {
	Port        string   `env:"SERVER_PORT" envDefault:"8008"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

type MongoConfig struct {
	// Driver is "mongo" or "memory"; memory is for local runs without a replica set
	Driver string `env:"STORAGE_DRIVER" envDefault:"mongo"`
	URI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017/?replicaSet=rs0"`
	DBName string `env:"MONGO_DB" envDefault:"storefront"`
}

type RedisConfig struct {
	// URL is optional; without it caching is off and notifications cannot use redis
	URL string `env:"REDIS_URL"`
}

type AuthConfig struct {
	Mode           string `env:"AUTH_MODE" envDefault:"jwt"`
	JWTSecret      string `env:"JWT_SECRET"`
	AuthServiceURL string `env:"AUTH_SERVICE_URL" envDefault:"http://auth-service:8081"`
}

type NotificationConfig struct {
	Mode       string `env:"NOTIFICATION_MODE" envDefault:"none"`
	ServiceURL string `env:"NOTIFICATION_SERVICE_URL" envDefault:"http://notification-service:8009"`
}

type PollingConfig struct {
	RateLimit float64 `env:"POLL_RATE_LIMIT" envDefault:"2"`
	RateBurst int     `env:"POLL_RATE_BURST" envDefault:"5"`
}

type CacheConfig struct {
	SessionTTL   time.Duration `env:"SESSION_CACHE_TTL" envDefault:"30s"`
	AnalyticsTTL time.Duration `env:"ANALYTICS_CACHE_TTL" envDefault:"5m"`
}

type ReaperConfig struct {
	Enabled     bool          `env:"REAPER_ENABLED" envDefault:"true"`
	Interval    time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	BatchSize   int           `env:"REAPER_BATCH_SIZE" envDefault:"100"`
}

func NewConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.MongoDB.Driver {
	case "mongo":
		if c.MongoDB.URI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.MongoDB.Driver))
	}

	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required when AUTH_MODE=jwt"))
		}
	case "remote":
		if c.Auth.AuthServiceURL == "" {
			errs = append(errs, errors.New("AUTH_SERVICE_URL is required when AUTH_MODE=remote"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode))
	}

	switch c.Notification.Mode {
	case "none", "http":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when NOTIFICATION_MODE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFICATION_MODE %q", c.Notification.Mode))
	}

	if c.Polling.RateLimit <= 0 || c.Polling.RateBurst <= 0 {
		errs = append(errs, errors.New("POLL_RATE_LIMIT and POLL_RATE_BURST must be positive"))
	}
	if c.Reaper.Enabled && (c.Reaper.Interval <= 0 || c.Reaper.IdleTimeout <= 0) {
		errs = append(errs, errors.New("REAPER_INTERVAL and SESSION_IDLE_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}
