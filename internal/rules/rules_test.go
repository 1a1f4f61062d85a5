package rules

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLookup(t *testing.T) {
	run := func(context.Context, Input) error { return nil }

	r := NewRegistry("site.rules")
	r.Register("site.rules.contact", Module{Run: run})
	r.Register("site.rules.broken", Module{})
	r.Register("other.rules.survey", Module{Run: run})

	tests := []struct {
		name    string
		slug    string
		wantNil bool
		wantErr error
	}{
		{"registered", "contact", false, nil},
		{"missing module", "newsletter", true, nil},
		{"other path", "survey", true, nil},
		{"module without run", "broken", true, ErrMissingRun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := r.Lookup(tt.slug)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Lookup(%q) error = %v, want %v", tt.slug, err, tt.wantErr)
			}
			if (rule == nil) != tt.wantNil {
				t.Errorf("Lookup(%q) rule nil = %v, want %v", tt.slug, rule == nil, tt.wantNil)
			}
		})
	}
}

func TestLookup_MissingRunNamesModule(t *testing.T) {
	r := NewRegistry("site.rules")
	r.Register("site.rules.broken", Module{})

	_, err := r.Lookup("broken")
	if err == nil || !strings.Contains(err.Error(), "site.rules.broken") {
		t.Errorf("error should name the module, got %v", err)
	}
}

func TestLookup_NotConfigured(t *testing.T) {
	r := NewRegistry("")
	if r.Configured() {
		t.Error("Configured() = true with empty path")
	}
	if _, err := r.Lookup("contact"); !errors.Is(err, ErrRulesPathNotConfigured) {
		t.Errorf("Lookup() error = %v, want ErrRulesPathNotConfigured", err)
	}
}

func TestValidate(t *testing.T) {
	run := func(context.Context, Input) error { return nil }

	r := NewRegistry("site.rules")
	r.Register("site.rules.contact", Module{Run: run})
	r.Register("other.rules.broken", Module{})
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	r.Register("site.rules.survey", Module{})
	r.Register("site.rules.broken", Module{})
	err := r.Validate()
	if !errors.Is(err, ErrMissingRun) {
		t.Fatalf("Validate() error = %v, want ErrMissingRun", err)
	}
	if !strings.Contains(err.Error(), "site.rules.broken, site.rules.survey") {
		t.Errorf("error should list the broken modules, got %v", err)
	}

	if err := NewRegistry("").Validate(); err != nil {
		t.Errorf("Validate() without a rules path = %v, want nil", err)
	}
}
