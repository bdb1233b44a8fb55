package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv() {
	os.Unsetenv("APP_PORT")
	os.Unsetenv("APP_ENV")
	os.Unsetenv("ALLOWED_ORIGINS")
	os.Unsetenv("GEO_BASE_URL")
	os.Unsetenv("GEO_TIMEOUT")
	os.Unsetenv("HISTORY_LIMIT")
	os.Unsetenv("RATE_WINDOW")
	os.Unsetenv("RATE_QUOTA")
	os.Unsetenv("MESSAGE_MAX_LEN")
	os.Unsetenv("NAME_MAX_LEN")
	os.Unsetenv("STALE_AFTER")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg := Load()

	if cfg.Port != "3001" {
		t.Errorf("Load() Port = %v, want 3001", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Errorf("Load() Env = %v, want dev", cfg.Env)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("Load() AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.HistoryLimit != 100 {
		t.Errorf("Load() HistoryLimit = %v, want 100", cfg.HistoryLimit)
	}
	if cfg.RateWindow != 10*time.Second {
		t.Errorf("Load() RateWindow = %v, want 10s", cfg.RateWindow)
	}
	if cfg.RateQuota != 5 {
		t.Errorf("Load() RateQuota = %v, want 5", cfg.RateQuota)
	}
	if cfg.MessageMaxLen != 500 {
		t.Errorf("Load() MessageMaxLen = %v, want 500", cfg.MessageMaxLen)
	}
	if cfg.NameMaxLen != 30 {
		t.Errorf("Load() NameMaxLen = %v, want 30", cfg.NameMaxLen)
	}
	if cfg.StaleAfter != 30*time.Minute {
		t.Errorf("Load() StaleAfter = %v, want 30m", cfg.StaleAfter)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	os.Setenv("APP_PORT", "9090")
	os.Setenv("APP_ENV", "prod")
	os.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	os.Setenv("RATE_WINDOW", "30s")
	os.Setenv("RATE_QUOTA", "10")
	defer clearEnv()

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Load() Port = %v, want 9090", cfg.Port)
	}
	if cfg.Env != "prod" {
		t.Errorf("Load() Env = %v, want prod", cfg.Env)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("Load() AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.RateWindow != 30*time.Second {
		t.Errorf("Load() RateWindow = %v, want 30s", cfg.RateWindow)
	}
	if cfg.RateQuota != 10 {
		t.Errorf("Load() RateQuota = %v, want 10", cfg.RateQuota)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	os.Setenv("HISTORY_LIMIT", "invalid")
	os.Setenv("RATE_QUOTA", "-5")
	os.Setenv("RATE_WINDOW", "not-a-duration")
	defer clearEnv()

	cfg := Load()

	// 非法取值回落到缺省。
	if cfg.HistoryLimit != 100 {
		t.Errorf("Load() HistoryLimit = %v, want 100 (default)", cfg.HistoryLimit)
	}
	if cfg.RateQuota != 5 {
		t.Errorf("Load() RateQuota = %v, want 5 (default)", cfg.RateQuota)
	}
	if cfg.RateWindow != 10*time.Second {
		t.Errorf("Load() RateWindow = %v, want 10s (default)", cfg.RateWindow)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"empty port", func(c *Config) { c.Port = "" }, true},
		{"no origins outside dev", func(c *Config) { c.Env = "prod"; c.AllowedOrigins = nil }, true},
		{"no origins in dev", func(c *Config) { c.AllowedOrigins = nil }, false},
		{"zero history limit", func(c *Config) { c.HistoryLimit = 0 }, true},
		{"zero rate window", func(c *Config) { c.RateWindow = 0 }, true},
		{"zero stale duration", func(c *Config) { c.StaleAfter = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv()
			cfg := Load()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
