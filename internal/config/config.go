// Package config loads service configuration from the environment. A .env
// file in the working directory is honored when present; real environment
// variables win over it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the API process needs at startup.
type Config struct {
	Addr  string
	PgDSN string

	// Embedding provider: "openai" or "ollama".
	EmbedProvider   string
	EmbedModel      string
	EmbedEndpoint   string
	EmbedAPIKey     string
	EmbedDimensions int
	EmbedTimeout    time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	AuditQueueSize int
}

// Load reads the environment (and an optional .env file) into a Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:            getEnv("COACHSCOPE_ADDR", ":8080"),
		PgDSN:           os.Getenv("COACHSCOPE_PG_DSN"),
		EmbedProvider:   getEnv("COACHSCOPE_EMBED_PROVIDER", "openai"),
		EmbedModel:      getEnv("COACHSCOPE_EMBED_MODEL", "text-embedding-3-small"),
		EmbedEndpoint:   os.Getenv("COACHSCOPE_EMBED_ENDPOINT"),
		EmbedAPIKey:     os.Getenv("COACHSCOPE_EMBED_API_KEY"),
		EmbedDimensions: getEnvInt("COACHSCOPE_EMBED_DIMENSIONS", 1536),
		EmbedTimeout:    getEnvDuration("COACHSCOPE_EMBED_TIMEOUT", 10*time.Second),
		RateLimitRPS:    getEnvFloat("COACHSCOPE_RATE_RPS", 20),
		RateLimitBurst:  getEnvInt("COACHSCOPE_RATE_BURST", 40),
		AuditQueueSize:  getEnvInt("COACHSCOPE_AUDIT_QUEUE", 1024),
	}

	if cfg.PgDSN == "" {
		return Config{}, fmt.Errorf("COACHSCOPE_PG_DSN is required")
	}
	switch cfg.EmbedProvider {
	case "openai", "ollama":
	default:
		return Config{}, fmt.Errorf("unknown embedding provider %q", cfg.EmbedProvider)
	}
	if cfg.EmbedProvider == "openai" && cfg.EmbedAPIKey == "" {
		return Config{}, fmt.Errorf("COACHSCOPE_EMBED_API_KEY is required for the openai provider")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
