package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, int64(64<<10), cfg.Server.MaxBodyBytes)
		assert.Equal(t, "pitt.edu", cfg.Verification.Domain)
		assert.Equal(t, 15*time.Minute, cfg.Verification.CodeTTL)
		assert.Equal(t, 30*time.Minute, cfg.Verification.AwaitingTTL)
		assert.Equal(t, time.Hour, cfg.Verification.VerifiedTTL)
		assert.Equal(t, "verify@pittmc.com", cfg.Verification.InboundAddress)
		assert.Equal(t, 2*time.Hour, cfg.Token.TTL)
		assert.Equal(t, 30*24*time.Hour, cfg.Token.SecretTTL)
		assert.Empty(t, cfg.Redis.Address)
		assert.False(t, cfg.Whitelist.Configured())
		assert.False(t, cfg.Whitelist.StrictBedrock)
		assert.Equal(t, time.Second, cfg.Discord.MinInterval)
		assert.Equal(t, ":2525", cfg.SMTP.BindAddr)
		assert.False(t, cfg.SMTP.Enabled)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Empty(t, cfg.Database.Type)
		assert.Equal(t, 10, cfg.RateLimit.Burst)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("PITTMC_SERVER_PORT", "9090")
		t.Setenv("PITTMC_VERIFICATION_DOMAIN", "@PITT.EDU")
		t.Setenv("PITTMC_VERIFICATION_CODE_TTL", "5m")
		t.Setenv("PITTMC_VERIFICATION_INBOUND_ADDRESS", "Verify@Mail.PittMC.com")
		t.Setenv("PITTMC_WHITELIST_BASE_URL", "https://mc.example.com/")
		t.Setenv("PITTMC_WHITELIST_ROUTE", "/api/whitelist")
		t.Setenv("PITTMC_WHITELIST_USERNAME", "svc")
		t.Setenv("PITTMC_WHITELIST_PASSWORD", "secret")
		t.Setenv("PITTMC_WHITELIST_STRICT_BEDROCK", "true")
		t.Setenv("PITTMC_CORS_ALLOWED_ORIGINS", "https://pittmc.com, https://www.pittmc.com")
		t.Setenv("PITTMC_REDIS_ADDRESS", "redis:6379")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "pitt.edu", cfg.Verification.Domain)
		assert.Equal(t, 5*time.Minute, cfg.Verification.CodeTTL)
		assert.Equal(t, "verify@mail.pittmc.com", cfg.Verification.InboundAddress)
		assert.Equal(t, "https://mc.example.com", cfg.Whitelist.BaseURL)
		assert.True(t, cfg.Whitelist.Configured())
		assert.True(t, cfg.Whitelist.StrictBedrock)
		assert.Equal(t, []string{"https://pittmc.com", "https://www.pittmc.com"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "redis:6379", cfg.Redis.Address)
	})

	t.Run("malformed durations fall back", func(t *testing.T) {
		t.Setenv("PITTMC_TOKEN_TTL", "two hours")
		t.Setenv("PITTMC_DISCORD_MIN_INTERVAL", "-1s")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 2*time.Hour, cfg.Token.TTL)
		assert.Equal(t, time.Second, cfg.Discord.MinInterval)
	})
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"empty domain", map[string]string{"PITTMC_VERIFICATION_DOMAIN": " "}},
		{"unknown database", map[string]string{"PITTMC_DATABASE_TYPE": "sqlite"}},
		{"database without dsn", map[string]string{"PITTMC_DATABASE_TYPE": "postgres"}},
		{"mail without host", map[string]string{"PITTMC_MAIL_ENABLED": "true"}},
		{"negative rate", map[string]string{"PITTMC_RATELIMIT_RPS": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList(" a, ,b ,"))
	assert.Empty(t, parseList(""))
}
