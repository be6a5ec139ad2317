package config

import (
	"strings"
	"testing"
	"time"
)

func setBaseline(t *testing.T) {
	t.Helper()
	t.Setenv("COACHSCOPE_PG_DSN", "postgres://localhost:5432/coachscope")
	t.Setenv("COACHSCOPE_EMBED_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setBaseline(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.EmbedProvider != "openai" || cfg.EmbedModel != "text-embedding-3-small" {
		t.Fatalf("embed defaults = %q %q", cfg.EmbedProvider, cfg.EmbedModel)
	}
	if cfg.EmbedDimensions != 1536 || cfg.EmbedTimeout != 10*time.Second {
		t.Fatalf("embed defaults = %d %v", cfg.EmbedDimensions, cfg.EmbedTimeout)
	}
	if cfg.RateLimitRPS != 20 || cfg.RateLimitBurst != 40 {
		t.Fatalf("rate defaults = %v %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoadOverrides(t *testing.T) {
	setBaseline(t)
	t.Setenv("COACHSCOPE_ADDR", ":9999")
	t.Setenv("COACHSCOPE_EMBED_PROVIDER", "ollama")
	t.Setenv("COACHSCOPE_EMBED_TIMEOUT", "30s")
	t.Setenv("COACHSCOPE_RATE_RPS", "5.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.EmbedProvider != "ollama" {
		t.Fatalf("overrides ignored: %+v", cfg)
	}
	if cfg.EmbedTimeout != 30*time.Second || cfg.RateLimitRPS != 5.5 {
		t.Fatalf("overrides ignored: %+v", cfg)
	}
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("COACHSCOPE_PG_DSN", "")
	t.Setenv("COACHSCOPE_EMBED_API_KEY", "sk-test")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "COACHSCOPE_PG_DSN") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	setBaseline(t)
	t.Setenv("COACHSCOPE_EMBED_PROVIDER", "bert")
	if _, err := Load(); err == nil {
		t.Fatal("unknown provider accepted")
	}
}

func TestLoadOpenAIRequiresKey(t *testing.T) {
	t.Setenv("COACHSCOPE_PG_DSN", "postgres://localhost:5432/coachscope")
	t.Setenv("COACHSCOPE_EMBED_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("missing API key accepted")
	}

	// Ollama needs no key.
	t.Setenv("COACHSCOPE_EMBED_PROVIDER", "ollama")
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	setBaseline(t)
	t.Setenv("COACHSCOPE_EMBED_DIMENSIONS", "lots")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EmbedDimensions != 1536 {
		t.Fatalf("EmbedDimensions = %d", cfg.EmbedDimensions)
	}
}
