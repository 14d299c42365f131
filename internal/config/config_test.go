package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "voice"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "APP_ENV is required") || !strings.Contains(err.Error(), "JWT_SECRET is required") {
		t.Fatalf("expected aggregated errors, got %v", err)
	}
}

func TestValidate_ProductionRequiresSSLModeAndWebhookSecret(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"

	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
	if !strings.Contains(err.Error(), "DB_SSLMODE") || !strings.Contains(err.Error(), "PROVIDER_WEBHOOK_SECRET") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_LocalAppliesDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Tools.Timeout != 3*time.Second || c.Tools.Concurrency != 8 {
		t.Fatalf("unexpected tool defaults: %+v", c.Tools)
	}
	if c.Campaign.InterCallGap != 30*time.Second || c.Campaign.RecentActivity != 10 || c.Campaign.Queue != "campaigns" || c.Campaign.SlotTTL != time.Hour {
		t.Fatalf("unexpected campaign defaults: %+v", c.Campaign)
	}
	if c.Tenancy.PhoneDefaultRegion != "US" {
		t.Fatalf("expected US default region, got %q", c.Tenancy.PhoneDefaultRegion)
	}
}

func TestLoad_ParsesEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_NAME", "n")
	t.Setenv("REDIS_HOST", "r")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("TOOL_CALL_TIMEOUT", "1500ms")
	t.Setenv("CAMPAIGN_MAX_CONCURRENT_CALLS", "3")
	t.Setenv("CAMPAIGN_SLOT_TTL", "90m")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTPAddr() != ":9000" {
		t.Fatalf("unexpected addr %q", c.HTTPAddr())
	}
	if c.Tools.Timeout != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s tool timeout, got %v", c.Tools.Timeout)
	}
	if c.Campaign.MaxConcurrentCalls != 3 {
		t.Fatalf("expected 3 concurrent calls, got %d", c.Campaign.MaxConcurrentCalls)
	}
	if c.Campaign.SlotTTL != 90*time.Minute {
		t.Fatalf("expected 90m slot ttl, got %v", c.Campaign.SlotTTL)
	}
	if c.RedisAddr() != "r:6379" {
		t.Fatalf("unexpected redis addr %q", c.RedisAddr())
	}
}

func TestLoad_RejectsMalformedDuration(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_NAME", "n")
	t.Setenv("REDIS_HOST", "r")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("CAMPAIGN_INTER_CALL_GAP", "soon")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CAMPAIGN_INTER_CALL_GAP") {
		t.Fatalf("expected duration parse error, got %v", err)
	}
}
