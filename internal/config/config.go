// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads process-wide settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"OCMS_DB_PATH" envDefault:"./data/forms.db"`
	SessionSecret string `env:"OCMS_SESSION_SECRET,required"`
	ServerHost    string `env:"OCMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"OCMS_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"OCMS_ENV" envDefault:"development"`
	LogLevel      string `env:"OCMS_LOG_LEVEL" envDefault:"info"`
	LoginURL      string `env:"OCMS_LOGIN_URL" envDefault:"/login"`

	// DefaultFromEmail is used when a form does not configure a sender.
	DefaultFromEmail string `env:"OCMS_DEFAULT_FROM_EMAIL" envDefault:"webmaster@localhost"`

	// Outgoing mail. With no SMTPAddr, messages are only logged.
	SMTPAddr     string `env:"OCMS_SMTP_ADDR"`
	SMTPUsername string `env:"OCMS_SMTP_USERNAME"`
	SMTPPassword string `env:"OCMS_SMTP_PASSWORD"`

	// Cache configuration
	RedisURL     string `env:"OCMS_REDIS_URL"`                         // Optional Redis URL for distributed caching
	CachePrefix  string `env:"OCMS_CACHE_PREFIX" envDefault:"forms:"`  // Redis key prefix
	CacheTTL     int    `env:"OCMS_CACHE_TTL" envDefault:"300"`        // Form definition cache TTL in seconds
	CacheMaxSize int    `env:"OCMS_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries

	// Public submission rate limiting (per client IP)
	SubmitRate  float64 `env:"OCMS_SUBMIT_RATE" envDefault:"2"`
	SubmitBurst int     `env:"OCMS_SUBMIT_BURST" envDefault:"10"`

	// Seeding configuration
	DoSeed bool `env:"OCMS_DO_SEED" envDefault:"false"` // Seed a demo contact form

	Forms Forms
}

// Forms holds the forms-builder settings. It is a value type and is
// never modified after Load returns.
type Forms struct {
	// FieldMaxLength is the maximum allowed length for field values.
	FieldMaxLength int `env:"OCMS_FORMS_FIELD_MAX_LENGTH" envDefault:"2000"`
	// LabelMaxLength is the maximum allowed length for field labels.
	LabelMaxLength int `env:"OCMS_FORMS_LABEL_MAX_LENGTH" envDefault:"200"`
	// ExtraFieldsPath points at a YAML file declaring extension templates.
	ExtraFieldsPath string `env:"OCMS_FORMS_EXTRA_FIELDS"`
	// UploadRoot is the directory uploaded files are written to.
	UploadRoot string `env:"OCMS_FORMS_UPLOAD_ROOT" envDefault:"./uploads/forms"`
	// UseHTML5 swaps date, email, number and url widgets for HTML5 inputs.
	UseHTML5 bool `env:"OCMS_FORMS_USE_HTML5" envDefault:"true"`
	// UseSites restricts published forms to SiteID.
	UseSites bool `env:"OCMS_FORMS_USE_SITES" envDefault:"false"`
	SiteID   int64 `env:"OCMS_FORMS_SITE_ID" envDefault:"1"`
	// EditableSlugs allows authors to choose form slugs instead of deriving them from titles.
	EditableSlugs bool `env:"OCMS_FORMS_EDITABLE_SLUGS" envDefault:"false"`
	// CSVDelimiter separates columns when responses are exported.
	CSVDelimiter string `env:"OCMS_FORMS_CSV_DELIMITER" envDefault:","`
	// HelpTextMaxLength is the maximum allowed length for field help text.
	HelpTextMaxLength int `env:"OCMS_FORMS_HELPTEXT_MAX_LENGTH" envDefault:"100"`
	// ChoicesMaxLength is the maximum allowed length for a field's serialized choices.
	ChoicesMaxLength int `env:"OCMS_FORMS_CHOICES_MAX_LENGTH" envDefault:"1000"`
	// EmailFailSilently decides whether email delivery errors are swallowed.
	// Unset means: silent outside development, raising in development.
	EmailFailSilently *bool `env:"OCMS_FORMS_EMAIL_FAIL_SILENTLY"`
	// RulesPath is the module path rule modules are registered under.
	RulesPath string `env:"OCMS_FORMS_RULES_PATH"`
}

// DefaultForms returns the forms settings with every documented default applied.
func DefaultForms() Forms {
	silent := true
	return Forms{
		FieldMaxLength:    2000,
		LabelMaxLength:    200,
		UploadRoot:        "./uploads/forms",
		UseHTML5:          true,
		SiteID:            1,
		CSVDelimiter:      ",",
		HelpTextMaxLength: 100,
		ChoicesMaxLength:  1000,
		EmailFailSilently: &silent,
	}
}

// FailSilently reports whether email delivery errors should be swallowed.
func (f Forms) FailSilently() bool {
	return f.EmailFailSilently == nil || *f.EmailFailSilently
}

// RulesConfigured returns true if a rules path is set.
func (f Forms) RulesConfigured() bool {
	return f.RulesPath != ""
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseSMTP returns true if an SMTP relay is configured.
func (c Config) UseSMTP() bool {
	return c.SMTPAddr != ""
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("OCMS_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("OCMS_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("OCMS_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if err := cfg.Forms.validate(); err != nil {
		return nil, err
	}

	// Debug-oriented default raises email errors, production swallows them.
	if cfg.Forms.EmailFailSilently == nil {
		silent := !cfg.IsDevelopment()
		cfg.Forms.EmailFailSilently = &silent
	}

	return cfg, nil
}

// validate rejects forms settings that cannot work.
func (f Forms) validate() error {
	if f.FieldMaxLength <= 0 {
		return fmt.Errorf("OCMS_FORMS_FIELD_MAX_LENGTH must be positive, got %d", f.FieldMaxLength)
	}
	if f.LabelMaxLength <= 0 {
		return fmt.Errorf("OCMS_FORMS_LABEL_MAX_LENGTH must be positive, got %d", f.LabelMaxLength)
	}
	if len([]rune(f.CSVDelimiter)) != 1 {
		return fmt.Errorf("OCMS_FORMS_CSV_DELIMITER must be a single character, got %q", f.CSVDelimiter)
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
