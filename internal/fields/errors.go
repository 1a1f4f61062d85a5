// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package fields

import (
	"errors"
	"fmt"
)

// Configuration error sentinels. Every *ConfigError unwraps to one of these.
var (
	ErrDuplicateID        = errors.New("field type id already registered")
	ErrMissingKey         = errors.New("missing required key")
	ErrUnknownStrategy    = errors.New("unknown strategy")
	ErrModuleNotFound     = errors.New("module not found")
	ErrAttributeNotFound  = errors.New("attribute not found")
	ErrRegistryBuilt      = errors.New("registry already built")
	ErrUnknownFieldTypeID = errors.New("unknown field type id")
)

// ConfigError describes a fatal misconfiguration of the field type registry.
// It names the offending template, key, id or value.
type ConfigError struct {
	Template string // extension template name, if any
	Key      string // configuration key that is missing or wrong
	ID       ID     // field type id, if relevant
	Field    string // field display name, if relevant
	Value    string // offending value, if relevant
	Err      error
}

func (e *ConfigError) Error() string {
	switch {
	case errors.Is(e.Err, ErrDuplicateID):
		return fmt.Sprintf("fields: ID %d for field %q in extension template %q already exists", e.ID, e.Field, e.Template)
	case errors.Is(e.Err, ErrMissingKey) && (e.Key == "fields" || e.Key == "strategy"):
		return fmt.Sprintf("fields: extension template %q must have a '%s' key", e.Template, e.Key)
	case errors.Is(e.Err, ErrMissingKey):
		return fmt.Sprintf("fields: each custom field definition must have a '%s' key (template %q)", e.Key, e.Template)
	case errors.Is(e.Err, ErrUnknownStrategy):
		return fmt.Sprintf("fields: the 'strategy' of extension template %q must be either 'backend' or 'frontend', got %q", e.Template, e.Value)
	default:
		msg := fmt.Sprintf("fields: template %q", e.Template)
		if e.Key != "" {
			msg += fmt.Sprintf(" key %q", e.Key)
		}
		if e.Value != "" {
			msg += fmt.Sprintf(" value %q", e.Value)
		}
		return msg + ": " + e.Err.Error()
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError is a recoverable, per-submission error reported back to
// the submitter.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
