// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package fields holds the field type registry: the catalog of built-in and
// extension field types, their value classes (validation and coercion),
// their widgets and the metadata and choice keys each type expects.
//
// The registry is assembled once at startup through a Builder and is
// read-only afterwards.
package fields

import (
	"fmt"
	"strings"
)

// ID identifies a field type. Ids are unique across built-in and extension types.
type ID int

// Built-in field types.
const (
	Text             ID = 1
	Textarea         ID = 2
	Email            ID = 3
	Checkbox         ID = 4
	CheckboxMultiple ID = 5
	Select           ID = 6
	SelectMultiple   ID = 7
	RadioMultiple    ID = 8
	File             ID = 9
	Date             ID = 10
	DateTime         ID = 11
	Hidden           ID = 12
	Number           ID = 13
	URL              ID = 14
	DOB              ID = 15
)

// Helper groupings of the built-in types.
var (
	Choices  = []ID{Checkbox, Select, RadioMultiple}
	Dates    = []ID{Date, DateTime, DOB}
	Multiple = []ID{CheckboxMultiple, SelectMultiple}
)

// Strategy declares whether fields are rendered server-side or described
// as JSON for a client-side renderer.
type Strategy int

// The two rendering strategies.
const (
	Backend Strategy = iota + 1
	Frontend
)

// ParseStrategy maps a configuration value onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.TrimSpace(s) {
	case "backend":
		return Backend, nil
	case "frontend":
		return Frontend, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

func (s Strategy) String() string {
	switch s {
	case Backend:
		return "backend"
	case Frontend:
		return "frontend"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Choice is one selectable option of a choice-bearing field. It always
// carries "text" and may carry any other configured keys (score, slug, icon...).
type Choice map[string]any

// Text returns the display text of the choice.
func (c Choice) Text() string {
	if v, ok := c["text"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
