// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"markme/internal/clock"

	"github.com/robfig/cron/v3"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Addr        string
	DatabaseURL string

	// DefaultTimezone is used when neither the request nor the user carries
	// a valid zone.
	DefaultTimezone string
	// AbsenceFallbackTimezone lets the sweeper evaluate users who never
	// reported a zone. Empty means such users are skipped.
	AbsenceFallbackTimezone string

	RedisURL      string
	SweepSchedule string
	SweepLocation string

	LogLevel  string
	LogFormat string

	AdminName     string
	AdminEmail    string
	AdminPassword string

	OIDC OIDC

	// ForwardAuthHeader names the header a reverse proxy uses to pass the
	// authenticated email. Empty disables forward auth.
	ForwardAuthHeader string
	// TrustedProxies limits forward auth to requests arriving from these
	// networks. Empty trusts any peer once the header is enabled.
	TrustedProxies []netip.Prefix
}

// OIDC configures optional single sign-on.
type OIDC struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether enough settings are present to use SSO.
func (o OIDC) Enabled() bool {
	return o.Issuer != "" && o.ClientID != "" && o.ClientSecret != "" && o.RedirectURL != ""
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:                    getEnvWithDefault("ADDR", ":8080"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		DefaultTimezone:         getEnvWithDefault("DEFAULT_TIMEZONE", "UTC"),
		AbsenceFallbackTimezone: os.Getenv("ABSENCE_FALLBACK_TIMEZONE"),
		RedisURL:                os.Getenv("REDIS_URL"),
		SweepSchedule:           getEnvWithDefault("SWEEP_SCHEDULE", "5 0 * * *"),
		SweepLocation:           getEnvWithDefault("SWEEP_LOCATION", "UTC"),
		LogLevel:                getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:               getEnvWithDefault("LOG_FORMAT", "text"),
		AdminName:               getEnvWithDefault("ADMIN_NAME", "Administrator"),
		AdminEmail:              os.Getenv("ADMIN_EMAIL"),
		AdminPassword:           os.Getenv("ADMIN_PASSWORD"),
		OIDC: OIDC{
			Issuer:       os.Getenv("OIDC_ISSUER"),
			ClientID:     os.Getenv("OIDC_CLIENT_ID"),
			ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
		},
		ForwardAuthHeader: os.Getenv("FORWARD_AUTH_HEADER"),
	}
	proxies, err := parsePrefixes(os.Getenv("FORWARD_AUTH_TRUSTED_PROXIES"))
	if err != nil {
		return nil, err
	}
	cfg.TrustedProxies = proxies
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and well formed.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if !clock.Valid(c.DefaultTimezone) {
		errs = append(errs, fmt.Errorf("DEFAULT_TIMEZONE: unknown zone %q", c.DefaultTimezone))
	}
	if c.AbsenceFallbackTimezone != "" && !clock.Valid(c.AbsenceFallbackTimezone) {
		errs = append(errs, fmt.Errorf("ABSENCE_FALLBACK_TIMEZONE: unknown zone %q", c.AbsenceFallbackTimezone))
	}
	if !clock.Valid(c.SweepLocation) {
		errs = append(errs, fmt.Errorf("SWEEP_LOCATION: unknown zone %q", c.SweepLocation))
	}
	if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("SWEEP_SCHEDULE: %w", err))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: must be text or json, got %q", c.LogFormat))
	}
	if strings.ContainsAny(c.ForwardAuthHeader, " :\t") {
		errs = append(errs, fmt.Errorf("FORWARD_AUTH_HEADER: invalid header name %q", c.ForwardAuthHeader))
	}
	if len(c.TrustedProxies) > 0 && c.ForwardAuthHeader == "" {
		errs = append(errs, errors.New("FORWARD_AUTH_TRUSTED_PROXIES requires FORWARD_AUTH_HEADER"))
	}
	return errors.Join(errs...)
}

// parsePrefixes reads a comma separated list of CIDRs or bare addresses.
func parsePrefixes(v string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			addr, err := netip.ParseAddr(part)
			if err != nil {
				return nil, fmt.Errorf("FORWARD_AUTH_TRUSTED_PROXIES: %w", err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, fmt.Errorf("FORWARD_AUTH_TRUSTED_PROXIES: %w", err)
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
