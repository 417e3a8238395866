package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        // listen host, default "0.0.0.0"
	Port            int           // listen port, default 8080
	ReadTimeout     time.Duration // default 15s
	WriteTimeout    time.Duration // default 15s
	ShutdownTimeout time.Duration // graceful shutdown budget, default 10s
	MaxBodyBytes    int64         // request body limit, default 64 KiB
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoder with colours
	File        string // optional rotated log file
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
}

// CORSConfig holds the allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string // "*" allows any origin
}

// RedisConfig holds the KV store connection. An empty Address selects the
// in-process store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// VerificationConfig drives both verification protocols.
type VerificationConfig struct {
	Domain         string        // institutional email domain, default "pitt.edu"
	CodeTTL        time.Duration // default 15m
	AwaitingTTL    time.Duration // default 30m
	VerifiedTTL    time.Duration // default 1h
	InboundAddress string        // address users send the out-of-band email to
	WebhookSecret  string        // optional shared secret for /api/email-webhook
}

// TokenConfig controls bearer token lifetimes.
type TokenConfig struct {
	TTL       time.Duration // default 2h
	SecretTTL time.Duration // default 30 days
}

// WhitelistConfig points at the upstream whitelist API.
type WhitelistConfig struct {
	BaseURL       string
	Route         string
	Username      string
	Password      string
	Timeout       time.Duration
	StrictBedrock bool
}

// Configured reports whether the upstream endpoint and credentials are set.
func (c WhitelistConfig) Configured() bool {
	return c.BaseURL != "" && c.Route != "" && c.Username != "" && c.Password != ""
}

// DiscordConfig holds the progress notification webhook.
type DiscordConfig struct {
	WebhookURL  string
	MinInterval time.Duration // default 1s between webhook calls
	Workers     int
	QueueSize   int
	Timeout     time.Duration
}

// MailConfig holds the outbound SMTP relay used to send codes.
type MailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPConfig holds the inbound SMTP listener for out-of-band verification.
type SMTPConfig struct {
	Enabled        bool
	BindAddr       string // default ":2525"
	Domain         string // HELO/EHLO name
	MaxConnections int
	MaxPerIP       int
	RatePerMinute  int
}

// DatabaseConfig holds the optional SQL audit archive (mysql or postgres).
type DatabaseConfig struct {
	Type            string // "", "mysql" or "postgres"
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RateLimitConfig is the per-IP token bucket on the public API.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Config is the root configuration.
type Config struct {
	Server       ServerConfig
	Log          LogConfig
	CORS         CORSConfig
	Redis        RedisConfig
	Verification VerificationConfig
	Token        TokenConfig
	Whitelist    WhitelistConfig
	Discord      DiscordConfig
	Mail         MailConfig
	SMTP         SMTPConfig
	Database     DatabaseConfig
	RateLimit    RateLimitConfig
}

// Load reads the configuration from the environment and an optional .env.
//
// Precedence, highest first:
//  1. process environment
//  2. .env in the working directory or its parent
//  3. defaults
//
// Variables use the PITTMC_ prefix, e.g. PITTMC_WHITELIST_BASE_URL.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("pittmc")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	domain := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(v.GetString("verification.domain")), "@"))
	if domain == "" {
		return nil, fmt.Errorf("verification.domain must not be empty")
	}

	inbound := strings.TrimSpace(v.GetString("verification.inbound_address"))
	if inbound == "" {
		inbound = "verify@" + v.GetString("smtp.domain")
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	dbType := strings.ToLower(v.GetString("database.type"))
	switch dbType {
	case "", "mysql", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database.type %q", dbType)
	}
	if dbType != "" && v.GetString("database.dsn") == "" {
		return nil, fmt.Errorf("database.dsn is required when database.type is %q", dbType)
	}

	if v.GetBool("mail.enabled") && v.GetString("mail.host") == "" {
		return nil, fmt.Errorf("mail.host is required when mail.enabled is true")
	}

	rps := v.GetFloat64("ratelimit.rps")
	if rps < 0 {
		return nil, fmt.Errorf("ratelimit.rps must not be negative")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     duration(v, "server.read_timeout", 15*time.Second),
			WriteTimeout:    duration(v, "server.write_timeout", 15*time.Second),
			ShutdownTimeout: duration(v, "server.shutdown_timeout", 10*time.Second),
			MaxBodyBytes:    v.GetInt64("server.max_body_bytes"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
			MaxSizeMB:   v.GetInt("log.max_size_mb"),
			MaxBackups:  v.GetInt("log.max_backups"),
			MaxAgeDays:  v.GetInt("log.max_age_days"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Verification: VerificationConfig{
			Domain:         domain,
			CodeTTL:        duration(v, "verification.code_ttl", 15*time.Minute),
			AwaitingTTL:    duration(v, "verification.awaiting_ttl", 30*time.Minute),
			VerifiedTTL:    duration(v, "verification.verified_ttl", time.Hour),
			InboundAddress: strings.ToLower(inbound),
			WebhookSecret:  v.GetString("verification.webhook_secret"),
		},
		Token: TokenConfig{
			TTL:       duration(v, "token.ttl", 2*time.Hour),
			SecretTTL: duration(v, "token.secret_ttl", 30*24*time.Hour),
		},
		Whitelist: WhitelistConfig{
			BaseURL:       strings.TrimRight(v.GetString("whitelist.base_url"), "/"),
			Route:         v.GetString("whitelist.route"),
			Username:      v.GetString("whitelist.username"),
			Password:      v.GetString("whitelist.password"),
			Timeout:       duration(v, "whitelist.timeout", 10*time.Second),
			StrictBedrock: v.GetBool("whitelist.strict_bedrock"),
		},
		Discord: DiscordConfig{
			WebhookURL:  v.GetString("discord.webhook_url"),
			MinInterval: duration(v, "discord.min_interval", time.Second),
			Workers:     positive(v.GetInt("discord.workers"), 1),
			QueueSize:   positive(v.GetInt("discord.queue_size"), 100),
			Timeout:     duration(v, "discord.timeout", 5*time.Second),
		},
		Mail: MailConfig{
			Enabled:  v.GetBool("mail.enabled"),
			Host:     v.GetString("mail.host"),
			Port:     v.GetInt("mail.port"),
			Username: v.GetString("mail.username"),
			Password: v.GetString("mail.password"),
			From:     v.GetString("mail.from"),
		},
		SMTP: SMTPConfig{
			Enabled:        v.GetBool("smtp.enabled"),
			BindAddr:       v.GetString("smtp.bind_addr"),
			Domain:         v.GetString("smtp.domain"),
			MaxConnections: positive(v.GetInt("smtp.max_connections"), 100),
			MaxPerIP:       positive(v.GetInt("smtp.max_per_ip"), 5),
			RatePerMinute:  positive(v.GetInt("smtp.rate_per_minute"), 30),
		},
		Database: DatabaseConfig{
			Type:            dbType,
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: duration(v, "database.conn_max_lifetime", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: rps,
			Burst:             positive(v.GetInt("ratelimit.burst"), 10),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 64<<10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("redis.address", "") // empty: in-memory store
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("verification.domain", "pitt.edu")
	v.SetDefault("verification.code_ttl", "15m")
	v.SetDefault("verification.awaiting_ttl", "30m")
	v.SetDefault("verification.verified_ttl", "1h")
	v.SetDefault("verification.inbound_address", "")
	v.SetDefault("verification.webhook_secret", "")
	v.SetDefault("token.ttl", "2h")
	v.SetDefault("token.secret_ttl", "720h")
	v.SetDefault("whitelist.base_url", "")
	v.SetDefault("whitelist.route", "")
	v.SetDefault("whitelist.username", "")
	v.SetDefault("whitelist.password", "")
	v.SetDefault("whitelist.timeout", "10s")
	v.SetDefault("whitelist.strict_bedrock", false)
	v.SetDefault("discord.webhook_url", "")
	v.SetDefault("discord.min_interval", "1s")
	v.SetDefault("discord.workers", 1)
	v.SetDefault("discord.queue_size", 100)
	v.SetDefault("discord.timeout", "5s")
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "PittMC <help@pittmc.com>")
	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.bind_addr", ":2525")
	v.SetDefault("smtp.domain", "pittmc.com")
	v.SetDefault("smtp.max_connections", 100)
	v.SetDefault("smtp.max_per_ip", 5)
	v.SetDefault("smtp.rate_per_minute", 30)
	v.SetDefault("database.type", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 10)
}

// duration parses key, falling back when the value is malformed or not positive.
func duration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func positive(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

// parseList splits a comma separated value, dropping blanks.
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile loads .env from the working directory, then its parent.
// Missing files are ignored and existing variables are never overwritten.
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
