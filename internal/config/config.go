// Package config loads the server configuration: built-in defaults, then an
// optional YAML file, then GROWTH_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Default values.
const (
	DefaultAddr                = ":8080"
	DefaultDBPath              = "growthgame.db"
	DefaultReferralBonusPoints = 10
	DefaultConversionPercent   = "10"
	DefaultOverlayDebounce     = 500 * time.Millisecond
	DefaultFollowUpInterval    = 60 * time.Second
	DefaultSlowQueryMs         = 50
	DefaultSlowRequestMs       = 500
	DefaultTokenTTL            = 12 * time.Hour
	DefaultTeamRetryDelay      = 1 * time.Second
	minJWTSecretLen            = 32
)

// Percent is a decimal percentage that decodes from YAML scalars such as
// 10 or "12.5".
type Percent struct {
	decimal.Decimal
}

// UnmarshalYAML parses the scalar as a decimal.
func (p *Percent) UnmarshalYAML(value *yaml.Node) error {
	d, err := decimal.NewFromString(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("percent %q: %w", value.Value, err)
	}
	p.Decimal = d
	return nil
}

// LedgerConfig holds the point constants of the referral ledger.
type LedgerConfig struct {
	ReferralBonusPoints int `yaml:"referral_bonus_points"`
	// BarberReferralConversionPercent is the share of a lead-path conversion
	// that the creating staff member would receive.
	BarberReferralConversionPercent Percent `yaml:"barber_referral_conversion_percent"`
	// ApplyStaffShare gates the percentage split. Off unless set explicitly.
	ApplyStaffShare bool `yaml:"apply_staff_share"`
}

// AuthConfig holds token and CSRF secrets.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	CSRFKey   string        `yaml:"csrf_key"`
}

// EmailConfig configures outbound email.
type EmailConfig struct {
	ResendKey string `yaml:"resend_key"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
	AppURL    string `yaml:"app_url"`
}

// SeedConfig describes the organization and owner created on first start.
type SeedConfig struct {
	OrganizationName string `yaml:"organization_name"`
	OwnerName        string `yaml:"owner_name"`
	OwnerEmail       string `yaml:"owner_email"`
	OwnerPassword    string `yaml:"owner_password"`
}

// Config is the full server configuration.
type Config struct {
	Env      string `yaml:"env"`
	Addr     string `yaml:"addr"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	Ledger LedgerConfig `yaml:"ledger"`
	Auth   AuthConfig   `yaml:"auth"`
	Email  EmailConfig  `yaml:"email"`
	Seed   SeedConfig   `yaml:"seed"`

	OverlayDebounce  time.Duration `yaml:"overlay_debounce"`
	FollowUpInterval time.Duration `yaml:"follow_up_interval"`
	TeamRetryDelay   time.Duration `yaml:"team_retry_delay"`
	SlowQueryMs      int           `yaml:"slow_query_ms"`
	SlowRequestMs    int           `yaml:"slow_request_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env:      EnvDevelopment,
		Addr:     DefaultAddr,
		DBPath:   DefaultDBPath,
		LogLevel: "info",
		Ledger: LedgerConfig{
			ReferralBonusPoints:             DefaultReferralBonusPoints,
			BarberReferralConversionPercent: Percent{decimal.RequireFromString(DefaultConversionPercent)},
		},
		Auth: AuthConfig{TokenTTL: DefaultTokenTTL},
		Email: EmailConfig{
			From:   "Growth Game <noreply@growthgame.app>",
			AppURL: "http://localhost:8080",
		},
		Seed: SeedConfig{
			OrganizationName: "Barbearia",
			OwnerName:        "Dono",
			OwnerEmail:       "dono@growthgame.app",
		},
		OverlayDebounce:  DefaultOverlayDebounce,
		FollowUpInterval: DefaultFollowUpInterval,
		TeamRetryDelay:   DefaultTeamRetryDelay,
		SlowQueryMs:      DefaultSlowQueryMs,
		SlowRequestMs:    DefaultSlowRequestMs,
	}
}

// Load builds the configuration. path may be empty; a missing file yields
// the defaults. getenv is os.Getenv outside tests.
// PRE: getenv is non-nil
// POST: Returns a validated Config or an error naming the bad setting
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("GROWTH_ENV", &cfg.Env)
	str("GROWTH_ADDR", &cfg.Addr)
	str("GROWTH_DB_PATH", &cfg.DBPath)
	str("GROWTH_LOG_LEVEL", &cfg.LogLevel)
	str("GROWTH_JWT_SECRET", &cfg.Auth.JWTSecret)
	str("GROWTH_CSRF_KEY", &cfg.Auth.CSRFKey)
	str("GROWTH_RESEND_KEY", &cfg.Email.ResendKey)
	str("GROWTH_RESEND_FROM", &cfg.Email.From)
	str("GROWTH_REPLY_TO", &cfg.Email.ReplyTo)
	str("GROWTH_APP_URL", &cfg.Email.AppURL)
	str("GROWTH_ORG_NAME", &cfg.Seed.OrganizationName)
	str("GROWTH_OWNER_NAME", &cfg.Seed.OwnerName)
	str("GROWTH_OWNER_EMAIL", &cfg.Seed.OwnerEmail)
	str("GROWTH_OWNER_PASSWORD", &cfg.Seed.OwnerPassword)

	ints := map[string]*int{
		"GROWTH_REFERRAL_BONUS_POINTS": &cfg.Ledger.ReferralBonusPoints,
		"GROWTH_SLOW_QUERY_MS":         &cfg.SlowQueryMs,
		"GROWTH_SLOW_REQUEST_MS":       &cfg.SlowRequestMs,
	}
	for key, dst := range ints {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"GROWTH_OVERLAY_DEBOUNCE":  &cfg.OverlayDebounce,
		"GROWTH_FOLLOWUP_INTERVAL": &cfg.FollowUpInterval,
		"GROWTH_TEAM_RETRY_DELAY":  &cfg.TeamRetryDelay,
		"GROWTH_TOKEN_TTL":         &cfg.Auth.TokenTTL,
	}
	for key, dst := range durations {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := getenv("GROWTH_BARBER_REFERRAL_CONVERSION_PERCENT"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("GROWTH_BARBER_REFERRAL_CONVERSION_PERCENT: %w", err)
		}
		cfg.Ledger.BarberReferralConversionPercent = Percent{d}
	}
	if v := getenv("GROWTH_APPLY_STAFF_SHARE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GROWTH_APPLY_STAFF_SHARE: %w", err)
		}
		cfg.Ledger.ApplyStaffShare = b
	}
	return nil
}

// Validate checks cross-field constraints.
// PRE: cfg is populated
// POST: Returns nil if the server can start with cfg
func (c *Config) Validate() error {
	if c.Ledger.ReferralBonusPoints < 0 {
		return errors.New("referral_bonus_points cannot be negative")
	}
	pct := c.Ledger.BarberReferralConversionPercent.Decimal
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("barber_referral_conversion_percent must be between 0 and 100")
	}
	if c.OverlayDebounce <= 0 {
		return errors.New("overlay_debounce must be positive")
	}
	if c.FollowUpInterval <= 0 {
		return errors.New("follow_up_interval must be positive")
	}
	if c.IsProduction() {
		if len(c.Auth.JWTSecret) < minJWTSecretLen {
			return fmt.Errorf("jwt_secret must be at least %d characters in production", minJWTSecretLen)
		}
		if len(c.Auth.CSRFKey) != 32 {
			return errors.New("csrf_key must be exactly 32 bytes in production")
		}
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
