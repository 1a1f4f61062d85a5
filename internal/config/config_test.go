// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"log/slog"
	"os"
	"testing"
)

const testSecret = "test-Secret-key-32-bytes-long!!!"

func clearEnv(t *testing.T) {
	t.Helper()
	os.Clearenv()
	t.Setenv("OCMS_SESSION_SECRET", testSecret)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/forms.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/forms.db")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.LoginURL != "/login" {
		t.Errorf("LoginURL = %q, want %q", cfg.LoginURL, "/login")
	}

	f := cfg.Forms
	if f.FieldMaxLength != 2000 {
		t.Errorf("FieldMaxLength = %d, want 2000", f.FieldMaxLength)
	}
	if f.LabelMaxLength != 200 {
		t.Errorf("LabelMaxLength = %d, want 200", f.LabelMaxLength)
	}
	if !f.UseHTML5 {
		t.Error("UseHTML5 should default to true")
	}
	if f.UseSites {
		t.Error("UseSites should default to false")
	}
	if f.EditableSlugs {
		t.Error("EditableSlugs should default to false")
	}
	if f.CSVDelimiter != "," {
		t.Errorf("CSVDelimiter = %q, want %q", f.CSVDelimiter, ",")
	}
	if f.HelpTextMaxLength != 100 {
		t.Errorf("HelpTextMaxLength = %d, want 100", f.HelpTextMaxLength)
	}
	if f.ChoicesMaxLength != 1000 {
		t.Errorf("ChoicesMaxLength = %d, want 1000", f.ChoicesMaxLength)
	}
	if f.RulesConfigured() {
		t.Error("rules path should not be configured by default")
	}
	// development is the default environment, so email errors raise
	if f.FailSilently() {
		t.Error("FailSilently should be false in development")
	}
}

func TestLoad_EmailPolicyFollowsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCMS_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Forms.FailSilently() {
		t.Error("FailSilently should be true in production")
	}

	t.Setenv("OCMS_FORMS_EMAIL_FAIL_SILENTLY", "false")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Forms.FailSilently() {
		t.Error("explicit OCMS_FORMS_EMAIL_FAIL_SILENTLY=false should win")
	}
}

func TestLoad_CustomFormsValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCMS_FORMS_FIELD_MAX_LENGTH", "500")
	t.Setenv("OCMS_FORMS_USE_HTML5", "false")
	t.Setenv("OCMS_FORMS_RULES_PATH", "site.rules")
	t.Setenv("OCMS_FORMS_CSV_DELIMITER", ";")
	t.Setenv("OCMS_FORMS_EXTRA_FIELDS", "/etc/forms/extra.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Forms.FieldMaxLength != 500 {
		t.Errorf("FieldMaxLength = %d, want 500", cfg.Forms.FieldMaxLength)
	}
	if cfg.Forms.UseHTML5 {
		t.Error("UseHTML5 should be false")
	}
	if cfg.Forms.RulesPath != "site.rules" {
		t.Errorf("RulesPath = %q, want %q", cfg.Forms.RulesPath, "site.rules")
	}
	if cfg.Forms.CSVDelimiter != ";" {
		t.Errorf("CSVDelimiter = %q, want %q", cfg.Forms.CSVDelimiter, ";")
	}
	if cfg.Forms.ExtraFieldsPath != "/etc/forms/extra.yaml" {
		t.Errorf("ExtraFieldsPath = %q", cfg.Forms.ExtraFieldsPath)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"short secret", "OCMS_SESSION_SECRET", "short"},
		{"weak secret", "OCMS_SESSION_SECRET", "change-me-to-32-byte-secret-key!"},
		{"zero field length", "OCMS_FORMS_FIELD_MAX_LENGTH", "0"},
		{"long delimiter", "OCMS_FORMS_CSV_DELIMITER", ";;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q should fail", tt.key, tt.val)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (Config{LogLevel: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDefaultForms(t *testing.T) {
	f := DefaultForms()
	if !f.FailSilently() {
		t.Error("DefaultForms should fail silently")
	}
	if err := f.validate(); err != nil {
		t.Errorf("DefaultForms should validate: %v", err)
	}
}
