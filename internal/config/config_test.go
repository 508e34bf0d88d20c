package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "8008", cfg.Server.Port)
	assert.Equal(t, "mongo", cfg.MongoDB.Driver)
	assert.Equal(t, "jwt", cfg.Auth.Mode)
	assert.Equal(t, "none", cfg.Notification.Mode)
	assert.Equal(t, 30*time.Minute, cfg.Reaper.IdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Cache.AnalyticsTTL)
	assert.Equal(t, 5, cfg.Polling.RateBurst)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("AUTH_MODE", "remote")
	t.Setenv("AUTH_SERVICE_URL", "http://auth:8081")
	t.Setenv("NOTIFICATION_MODE", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SESSION_IDLE_TIMEOUT", "45m")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 45*time.Minute, cfg.Reaper.IdleTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			MongoDB:      MongoConfig{Driver: "memory"},
			Auth:         AuthConfig{Mode: "jwt", JWTSecret: "s"},
			Notification: NotificationConfig{Mode: "none"},
			Polling:      PollingConfig{RateLimit: 2, RateBurst: 5},
			Reaper:       ReaperConfig{Enabled: true, Interval: time.Minute, IdleTimeout: time.Minute},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.MongoDB.Driver = "sqlite" }, "unknown STORAGE_DRIVER"},
		{"mongo without uri", func(c *Config) { c.MongoDB = MongoConfig{Driver: "mongo"} }, "MONGO_URI"},
		{"jwt without secret", func(c *Config) { c.Auth.JWTSecret = "" }, "JWT_SECRET"},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "ldap" }, "unknown AUTH_MODE"},
		{"redis notifications without redis", func(c *Config) { c.Notification.Mode = "redis" }, "REDIS_URL"},
		{"unknown notification mode", func(c *Config) { c.Notification.Mode = "fcm" }, "unknown NOTIFICATION_MODE"},
		{"zero burst", func(c *Config) { c.Polling.RateBurst = 0 }, "POLL_RATE_BURST"},
		{"zero idle timeout", func(c *Config) { c.Reaper.IdleTimeout = 0 }, "SESSION_IDLE_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}

	t.Run("disabled reaper ignores intervals", func(t *testing.T) {
		cfg := valid()
		cfg.Reaper = ReaperConfig{}
		assert.NoError(t, cfg.Validate())
	})
}
