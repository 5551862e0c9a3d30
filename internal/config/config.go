package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the hub and bridge processes. Every
// field is optional; unset values default to permissive/open behavior.
type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	BridgePort string `env:"BRIDGE_PORT" envDefault:"8081"`
	Env        string `env:"ENV" envDefault:"development"`

	// Hub connection used by the bridge.
	HubURL string `env:"HUB_URL" envDefault:"ws://localhost:8080/"`

	// Storage. SQLite is the zero-config default for the peer registry;
	// DATABASE_URL switches it to Postgres. REDIS_URL enables envelope
	// history.
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./data/agenthub.db"`
	RedisURL    string `env:"REDIS_URL"`

	// Bridge rate limiting (per-IP token bucket).
	RateLimitRPS       float64  `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"10"`
	RateLimitWhitelist []string `env:"RATE_LIMIT_WHITELIST" envSeparator:","`

	// Bridge auth. When neither is set the bridge is open.
	JWTSecret    string `env:"JWT_SECRET"`
	JWTAlgorithm string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	APIKey       string `env:"API_KEY"`

	// Hub auth. When true, WS connections must present a registered
	// peer token.
	HubRequireAuth bool `env:"HUB_REQUIRE_AUTH" envDefault:"false"`

	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`
}

// Load reads configuration from environment variables. In development it
// loads from a .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.JWTAlgorithm != "HS256" {
		return nil, fmt.Errorf("unsupported JWT_ALGORITHM %q: only HS256 is supported", cfg.JWTAlgorithm)
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
