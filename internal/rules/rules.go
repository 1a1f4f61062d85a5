// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package rules looks up the custom post-submission rule of a form.
//
// A rule module is registered at startup under its full dotted path
// ("<rules path>.<form slug>"). Lookup joins the configured rules path with
// a form slug and returns the module's Run function.
package rules

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrRulesPathNotConfigured is returned by Lookup when no rules path is set.
	ErrRulesPathNotConfigured = errors.New("rules: OCMS_FORMS_RULES_PATH is not set")
	// ErrMissingRun is returned when a rule module exists without a Run function.
	ErrMissingRun = errors.New("rules: module has no Run function")
)

// Input is what a rule receives after a valid submission.
type Input struct {
	FormSlug string
	EntryID  int64
	Values   map[string]string
	Request  url.Values
}

// Rule is custom logic run for every valid submission of one form.
type Rule func(ctx context.Context, in Input) error

// Module is a registered rule module. Run may be nil, which is a
// misconfiguration reported at lookup.
type Module struct {
	Run Rule
}

// Registry holds the rule modules known to the process.
type Registry struct {
	path    string
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates a registry resolving slugs under path. An empty path
// means rules are not configured.
func NewRegistry(path string) *Registry {
	return &Registry{
		path:    path,
		modules: make(map[string]Module),
	}
}

// Register adds a rule module under its full dotted module path.
func (r *Registry) Register(modulePath string, m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[modulePath] = m
}

// Configured reports whether a rules path is set.
func (r *Registry) Configured() bool {
	return r.path != ""
}

// Lookup returns the rule for a form slug. A missing module yields a nil
// rule and no error.
func (r *Registry) Lookup(slug string) (Rule, error) {
	if r.path == "" {
		return nil, ErrRulesPathNotConfigured
	}
	modulePath := r.path + "." + slug

	r.mu.RLock()
	m, ok := r.modules[modulePath]
	r.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if m.Run == nil {
		return nil, fmt.Errorf("%w: create a Run function in module %s", ErrMissingRun, modulePath)
	}
	return m.Run, nil
}

// Validate reports every module under the rules path that has no Run
// function. It is meant to be called once all modules are registered.
func (r *Registry) Validate() error {
	if r.path == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var broken []string
	for modulePath, m := range r.modules {
		if m.Run == nil && strings.HasPrefix(modulePath, r.path+".") {
			broken = append(broken, modulePath)
		}
	}
	if len(broken) == 0 {
		return nil
	}
	slices.Sort(broken)
	return fmt.Errorf("%w: %s", ErrMissingRun, strings.Join(broken, ", "))
}
