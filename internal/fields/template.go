// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package fields

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TemplatesFile is the on-disk layout of the extension templates file.
type TemplatesFile struct {
	Templates []TemplateConfig `yaml:"templates"`
}

// TemplateConfig declares a group of extension field types sharing a
// rendering strategy and default key requirements. Pointer fields tell a
// missing key apart from an empty one.
type TemplateConfig struct {
	Name                string         `yaml:"name"`
	Strategy            *string        `yaml:"strategy"`
	Legacy              bool           `yaml:"legacy"`
	MetaRequiredKeys    []string       `yaml:"meta_required_keys"`
	MetaOptionalKeys    []string       `yaml:"meta_optional_keys"`
	ChoicesRequiredKeys []string       `yaml:"choices_required_keys"`
	ChoicesOptionalKeys []string       `yaml:"choices_optional_keys"`
	Fields              *[]FieldConfig `yaml:"fields"`
}

// FieldConfig declares one extension field type.
type FieldConfig struct {
	FieldID *int    `yaml:"field_id"`
	Name    *string `yaml:"name"`
	// Type is the dotted path of the value class; empty means no validation.
	Type *string `yaml:"type"`
	// Widget is a dotted path (backend) or a client component name (frontend).
	Widget              *string  `yaml:"widget"`
	MetaRequiredKeys    []string `yaml:"meta_required_keys"`
	MetaOptionalKeys    []string `yaml:"meta_optional_keys"`
	ChoicesRequiredKeys []string `yaml:"choices_required_keys"`
	ChoicesOptionalKeys []string `yaml:"choices_optional_keys"`
}

// LoadTemplates reads extension templates from a YAML file. An empty path
// yields no templates.
func LoadTemplates(path string) ([]TemplateConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading extension templates: %w", err)
	}
	return ParseTemplates(data)
}

// ParseTemplates decodes extension templates from YAML.
func ParseTemplates(data []byte) ([]TemplateConfig, error) {
	var f TemplatesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing extension templates: %w", err)
	}
	return f.Templates, nil
}

// Str is a convenience for building configs in code.
func Str(s string) *string { return &s }

// Int is a convenience for building configs in code.
func Int(i int) *int { return &i }
