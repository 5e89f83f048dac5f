package config

import (
	"net/netip"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/markme")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DefaultTimezone != "UTC" || cfg.SweepSchedule != "5 0 * * *" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.AbsenceFallbackTimezone != "" {
		t.Errorf("expected no fallback zone, got %q", cfg.AbsenceFallbackTimezone)
	}
	if cfg.OIDC.Enabled() {
		t.Error("expected SSO disabled by default")
	}
	if cfg.ForwardAuthHeader != "" || len(cfg.TrustedProxies) != 0 {
		t.Errorf("expected forward auth disabled by default, got %q %v", cfg.ForwardAuthHeader, cfg.TrustedProxies)
	}
}

func TestLoad_ForwardAuth(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/markme")
	t.Setenv("FORWARD_AUTH_HEADER", "Remote-User")
	t.Setenv("FORWARD_AUTH_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ForwardAuthHeader != "Remote-User" {
		t.Errorf("header = %q", cfg.ForwardAuthHeader)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[1].String() != "192.168.1.7/32" {
		t.Errorf("unexpected proxies: %v", cfg.TrustedProxies)
	}
}

func TestLoad_BadTrustedProxy(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/markme")
	t.Setenv("FORWARD_AUTH_HEADER", "Remote-User")
	t.Setenv("FORWARD_AUTH_TRUSTED_PROXIES", "not-a-network")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "FORWARD_AUTH_TRUSTED_PROXIES") {
		t.Errorf("expected proxy parse error, got %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/markme")
	t.Setenv("DEFAULT_TIMEZONE", "Asia/Karachi")
	t.Setenv("ABSENCE_FALLBACK_TIMEZONE", "Europe/London")
	t.Setenv("SWEEP_SCHEDULE", "30 1 * * 1-5")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("OIDC_ISSUER", "https://id.example.com")
	t.Setenv("OIDC_CLIENT_ID", "markme")
	t.Setenv("OIDC_CLIENT_SECRET", "s3cret")
	t.Setenv("OIDC_REDIRECT_URL", "https://markme.example.com/api/auth/sso/callback")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultTimezone != "Asia/Karachi" || cfg.AbsenceFallbackTimezone != "Europe/London" {
		t.Errorf("unexpected zones: %+v", cfg)
	}
	if !cfg.OIDC.Enabled() {
		t.Error("expected SSO enabled")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DatabaseURL:     "postgres://localhost/markme",
			DefaultTimezone: "UTC",
			SweepSchedule:   "5 0 * * *",
			SweepLocation:   "UTC",
			LogFormat:       "text",
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"bad default zone", func(c *Config) { c.DefaultTimezone = "Mars/Base" }, "DEFAULT_TIMEZONE"},
		{"bad fallback zone", func(c *Config) { c.AbsenceFallbackTimezone = "Nowhere" }, "ABSENCE_FALLBACK_TIMEZONE"},
		{"bad schedule", func(c *Config) { c.SweepSchedule = "every night" }, "SWEEP_SCHEDULE"},
		{"bad sweep location", func(c *Config) { c.SweepLocation = "Local" }, "SWEEP_LOCATION"},
		{"admin email only", func(c *Config) { c.AdminEmail = "admin@example.com" }, "ADMIN_PASSWORD"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"bad forward header", func(c *Config) { c.ForwardAuthHeader = "Remote User" }, "FORWARD_AUTH_HEADER"},
		{"proxies without header", func(c *Config) {
			c.TrustedProxies = []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
		}, "FORWARD_AUTH_HEADER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}
