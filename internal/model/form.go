// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model contains the form, field and entry records shared by the
// store, the submission pipeline and the handlers.
package model

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/olegiv/ocms-forms/internal/config"
	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/util"
)

// Form statuses
const (
	FormStatusDraft     = "draft"
	FormStatusPublished = "published"
)

// Form is a form definition authored by site operators.
type Form struct {
	ID            int64        `json:"id"`
	SiteID        int64        `json:"site_id"`
	Title         string       `json:"title"`
	Slug          string       `json:"slug"`
	Intro         string       `json:"intro"`
	ButtonText    string       `json:"button_text"`
	Response      string       `json:"response"`
	Template      string       `json:"template"` // extension template slug, empty for default
	RedirectURL   string       `json:"redirect_url"`
	Status        string       `json:"status"`
	PublishDate   time.Time    `json:"publish_date"`
	ExpiryDate    sql.NullTime `json:"expiry_date"`
	LoginRequired bool         `json:"login_required"`
	SendEmail     bool         `json:"send_email"`
	EmailTo       string       `json:"email_to"` // comma separated, overrides email fields
	EmailFrom     string       `json:"email_from"`
	EmailCopies   string       `json:"email_copies"` // comma separated
	EmailSubject  string       `json:"email_subject"`
	EmailMessage  string       `json:"email_message"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// IsPublished returns true if the form is published and inside its
// publication window at now.
func (f *Form) IsPublished(now time.Time) bool {
	if f.Status != FormStatusPublished || f.PublishDate.After(now) {
		return false
	}
	return !f.ExpiryDate.Valid || !f.ExpiryDate.Time.Before(now)
}

// Field is one input of a form.
type Field struct {
	ID          int64     `json:"id"`
	FormID      int64     `json:"form_id"`
	Label       string    `json:"label"`
	Slug        string    `json:"slug"`
	FieldType   fields.ID `json:"field_type"`
	Required    bool      `json:"required"`
	Visible     bool      `json:"visible"`
	Choices     string    `json:"choices"` // JSON list of choice objects
	Meta        string    `json:"meta"`    // JSON object
	Default     string    `json:"default"`
	Placeholder string    `json:"placeholder"`
	HelpText    string    `json:"help_text"`
	SortOrder   int       `json:"sort_order"`
}

// ParsedMeta decodes the meta blob. Malformed or empty blobs report false.
func (f *Field) ParsedMeta() (map[string]any, bool) {
	if f.Meta == "" {
		return nil, false
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(f.Meta), &meta); err != nil || meta == nil {
		return nil, false
	}
	return meta, true
}

// ParsedChoices decodes the choices blob. Malformed or empty blobs report false.
func (f *Field) ParsedChoices() ([]fields.Choice, bool) {
	if f.Choices == "" {
		return nil, false
	}
	var choices []fields.Choice
	if err := json.Unmarshal([]byte(f.Choices), &choices); err != nil || choices == nil {
		return nil, false
	}
	return choices, true
}

// Field definition errors
var (
	ErrLabelRequired   = errors.New("label is required")
	ErrLabelTooLong    = errors.New("label too long")
	ErrHelpTextTooLong = errors.New("help text too long")
	ErrChoicesTooLong  = errors.New("choices too long")
	ErrInvalidSlug     = errors.New("invalid slug")
	ErrInvalidMeta     = errors.New("meta must be a JSON object")
	ErrInvalidChoices  = errors.New("choices must be a JSON list of objects")
)

// Validate checks the field definition against the configured limits and
// the key requirements of its field type.
func (f *Field) Validate(reg *fields.Registry, limits config.Forms) error {
	if f.Label == "" {
		return ErrLabelRequired
	}
	if n := utf8.RuneCountInString(f.Label); n > limits.LabelMaxLength {
		return fmt.Errorf("%w: %d characters, max %d", ErrLabelTooLong, n, limits.LabelMaxLength)
	}
	if n := utf8.RuneCountInString(f.HelpText); n > limits.HelpTextMaxLength {
		return fmt.Errorf("%w: %d characters, max %d", ErrHelpTextTooLong, n, limits.HelpTextMaxLength)
	}
	if n := utf8.RuneCountInString(f.Choices); n > limits.ChoicesMaxLength {
		return fmt.Errorf("%w: %d characters, max %d", ErrChoicesTooLong, n, limits.ChoicesMaxLength)
	}
	if !util.IsValidSlug(f.Slug) {
		return fmt.Errorf("%w: %q", ErrInvalidSlug, f.Slug)
	}

	desc, ok := reg.Get(f.FieldType)
	if !ok {
		return fmt.Errorf("%w: %d", fields.ErrUnknownFieldTypeID, f.FieldType)
	}

	meta, ok := f.ParsedMeta()
	if f.Meta != "" && !ok {
		return ErrInvalidMeta
	}
	if err := reg.ValidateMeta(f.FieldType, meta); err != nil {
		return err
	}

	if desc.IsChoice() {
		choices, ok := f.ParsedChoices()
		if !ok {
			return ErrInvalidChoices
		}
		for _, c := range choices {
			if err := reg.ValidateChoice(f.FieldType, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Entry is one accepted submission.
type Entry struct {
	ID        int64        `json:"id"`
	FormID    int64        `json:"form_id"`
	EntryTime time.Time    `json:"entry_time"`
	Fields    []FieldEntry `json:"fields"`
	Files     []EntryFile  `json:"files"`
}

// FieldEntry is the stored value of one field in an entry.
type FieldEntry struct {
	ID      int64  `json:"id"`
	EntryID int64  `json:"entry_id"`
	FieldID int64  `json:"field_id"`
	Value   string `json:"value"`
}

// EntryFile records an upload stored below the upload root.
type EntryFile struct {
	ID       int64  `json:"id"`
	EntryID  int64  `json:"entry_id"`
	FieldID  int64  `json:"field_id"`
	Path     string `json:"path"` // relative to the upload root
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}
