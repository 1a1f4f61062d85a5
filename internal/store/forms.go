// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/ocms-forms/internal/config"
	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/model"
	"github.com/olegiv/ocms-forms/internal/util"
)

// ErrNotFound is returned when a form is missing or not visible to the requester.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateSlug is returned when an explicit slug is already taken.
var ErrDuplicateSlug = errors.New("store: slug already in use")

// FormStore is the persistence collaborator of the submission pipeline.
type FormStore struct {
	db       *sql.DB
	queries  *Queries
	settings config.Forms
	now      func() time.Time
}

// NewFormStore creates a form store over db.
func NewFormStore(db *sql.DB, settings config.Forms) *FormStore {
	return &FormStore{
		db:       db,
		queries:  New(db),
		settings: settings,
		now:      time.Now,
	}
}

// Queries exposes the underlying single-statement queries.
func (s *FormStore) Queries() *Queries {
	return s.queries
}

// Published returns the form with slug if identity may see it. Staff see
// every form; everybody else only published forms inside their publication
// window (and on the current site when sites are enabled).
func (s *FormStore) Published(ctx context.Context, identity model.Identity, slug string) (*model.Form, error) {
	f, err := s.queries.GetFormBySlug(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading form %q: %w", slug, err)
	}
	if identity.Staff {
		return &f, nil
	}
	if !f.IsPublished(s.now()) {
		return nil, ErrNotFound
	}
	if s.settings.UseSites && f.SiteID != s.settings.SiteID {
		return nil, ErrNotFound
	}
	return &f, nil
}

// Fields returns the fields of a form in display order.
func (s *FormStore) Fields(ctx context.Context, formID int64) ([]model.Field, error) {
	items, err := s.queries.ListFieldsByForm(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("listing fields of form %d: %w", formID, err)
	}
	return items, nil
}

// CreateEntry stores an entry with its field values and files in one
// transaction, setting every ID.
func (s *FormStore) CreateEntry(ctx context.Context, entry *model.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := s.queries.WithTx(tx)

	entry.ID, err = q.CreateEntry(ctx, entry.FormID, entry.EntryTime)
	if err != nil {
		return fmt.Errorf("creating entry: %w", err)
	}
	for i := range entry.Fields {
		entry.Fields[i].EntryID = entry.ID
		if err := q.CreateFieldEntry(ctx, &entry.Fields[i]); err != nil {
			return fmt.Errorf("creating field entry: %w", err)
		}
	}
	for i := range entry.Files {
		entry.Files[i].EntryID = entry.ID
		if err := q.CreateEntryFile(ctx, &entry.Files[i]); err != nil {
			return fmt.Errorf("creating entry file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entry: %w", err)
	}
	return nil
}

// SlugExists reports whether a form already uses slug.
func (s *FormStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	n, err := s.queries.CountFormsBySlug(ctx, slug)
	if err != nil {
		return false, fmt.Errorf("checking slug %q: %w", slug, err)
	}
	return n > 0, nil
}

// CreateForm inserts a form. Unless slugs are editable and one was given,
// the slug is derived from the title and made unique.
func (s *FormStore) CreateForm(ctx context.Context, f *model.Form) error {
	if strings.TrimSpace(f.Title) == "" {
		return errors.New("store: form title is required")
	}

	if s.settings.EditableSlugs && f.Slug != "" {
		if !util.IsValidSlug(f.Slug) {
			return fmt.Errorf("%w: %q", model.ErrInvalidSlug, f.Slug)
		}
		exists, err := s.SlugExists(ctx, f.Slug)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %q", ErrDuplicateSlug, f.Slug)
		}
	} else {
		base := util.Slugify(f.Title)
		if base == "" {
			base = "form"
		}
		var lookupErr error
		f.Slug = util.UniqueSlug(func(candidate string) bool {
			exists, err := s.SlugExists(ctx, candidate)
			if err != nil {
				lookupErr = err
				return false
			}
			return exists
		}, base)
		if lookupErr != nil {
			return lookupErr
		}
	}

	now := s.now().UTC()
	if f.SiteID == 0 {
		f.SiteID = s.settings.SiteID
	}
	if f.Status == "" {
		f.Status = model.FormStatusDraft
	}
	if f.ButtonText == "" {
		f.ButtonText = "Submit"
	}
	if f.PublishDate.IsZero() {
		f.PublishDate = now
	}
	f.CreatedAt, f.UpdatedAt = now, now

	if err := s.queries.CreateForm(ctx, f); err != nil {
		return fmt.Errorf("creating form: %w", err)
	}
	return nil
}

// CreateField validates and inserts a field. An empty slug is derived from
// the label and made unique within the form.
func (s *FormStore) CreateField(ctx context.Context, reg *fields.Registry, f *model.Field) error {
	if f.Slug == "" {
		base := util.Slugify(f.Label)
		if base == "" {
			base = "field"
		}
		var lookupErr error
		f.Slug = util.UniqueSlug(func(candidate string) bool {
			n, err := s.queries.CountFieldsBySlug(ctx, f.FormID, candidate)
			if err != nil {
				lookupErr = err
				return false
			}
			return n > 0
		}, base)
		if lookupErr != nil {
			return fmt.Errorf("checking field slug: %w", lookupErr)
		}
	} else if n, err := s.queries.CountFieldsBySlug(ctx, f.FormID, f.Slug); err != nil {
		return fmt.Errorf("checking field slug: %w", err)
	} else if n > 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateSlug, f.Slug)
	}

	if err := f.Validate(reg, s.settings); err != nil {
		return fmt.Errorf("invalid field %q: %w", f.Label, err)
	}
	if err := s.queries.CreateField(ctx, f); err != nil {
		return fmt.Errorf("creating field: %w", err)
	}
	return nil
}
