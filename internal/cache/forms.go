// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-forms/internal/config"
	"github.com/olegiv/ocms-forms/internal/model"
)

// FormBackend is the uncached form store.
type FormBackend interface {
	Published(ctx context.Context, identity model.Identity, slug string) (*model.Form, error)
	Fields(ctx context.Context, formID int64) ([]model.Field, error)
	CreateEntry(ctx context.Context, entry *model.Entry) error
}

// FormStore caches form definitions for anonymous visitors in front of a
// FormBackend. Staff lookups and entries always go to the backend.
type FormStore struct {
	backend  FormBackend
	cache    Cacher
	settings config.Forms
	ttl      time.Duration
	now      func() time.Time
}

// NewFormStore wraps backend with c. A zero ttl uses the cache default.
func NewFormStore(backend FormBackend, c Cacher, settings config.Forms, ttl time.Duration) *FormStore {
	return &FormStore{
		backend:  backend,
		cache:    c,
		settings: settings,
		ttl:      ttl,
		now:      time.Now,
	}
}

const (
	formKeyPrefix   = "form:"
	fieldsKeyPrefix = "fields:"
)

// Published returns the form with slug. Cached forms are re-checked against
// the publication window so expiry takes effect before the entry does.
func (s *FormStore) Published(ctx context.Context, identity model.Identity, slug string) (*model.Form, error) {
	if identity.Staff {
		return s.backend.Published(ctx, identity, slug)
	}

	key := formKeyPrefix + slug
	var f model.Form
	if s.load(ctx, key, &f) {
		if !f.IsPublished(s.now()) || (s.settings.UseSites && f.SiteID != s.settings.SiteID) {
			if err := s.Invalidate(ctx, f.Slug, f.ID); err != nil {
				slog.Warn("dropping stale form from cache failed", "form_slug", slug, "error", err, "category", "cache")
			}
			return s.backend.Published(ctx, identity, slug)
		}
		return &f, nil
	}

	form, err := s.backend.Published(ctx, identity, slug)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, form)
	return form, nil
}

// Fields returns the fields of a form in display order.
func (s *FormStore) Fields(ctx context.Context, formID int64) ([]model.Field, error) {
	key := fmt.Sprintf("%s%d", fieldsKeyPrefix, formID)
	var items []model.Field
	if s.load(ctx, key, &items) {
		return items, nil
	}

	items, err := s.backend.Fields(ctx, formID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, items)
	return items, nil
}

// CreateEntry is passed through to the backend.
func (s *FormStore) CreateEntry(ctx context.Context, entry *model.Entry) error {
	return s.backend.CreateEntry(ctx, entry)
}

// Invalidate drops the cached definition of a form.
func (s *FormStore) Invalidate(ctx context.Context, slug string, formID int64) error {
	return errors.Join(
		s.cache.Delete(ctx, formKeyPrefix+slug),
		s.cache.Delete(ctx, fmt.Sprintf("%s%d", fieldsKeyPrefix, formID)),
	)
}

// InvalidateAll drops every cached form definition. A shared cache can
// hold definitions written by an earlier release, so it runs at startup.
func (s *FormStore) InvalidateAll(ctx context.Context) error {
	return errors.Join(
		s.cache.DeleteByPrefix(ctx, formKeyPrefix),
		s.cache.DeleteByPrefix(ctx, fieldsKeyPrefix),
	)
}

// load reports whether key was found and decoded. Backend failures other
// than a miss are logged and treated as a miss.
func (s *FormStore) load(ctx context.Context, key string, dst any) bool {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			slog.Warn("form cache read failed", "key", key, "error", err, "category", "cache")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.Warn("discarding undecodable cache entry", "key", key, "error", err, "category", "cache")
		_ = s.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (s *FormStore) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("form cache encode failed", "key", key, "error", err, "category", "cache")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		slog.Warn("form cache write failed", "key", key, "error", err, "category", "cache")
	}
}
