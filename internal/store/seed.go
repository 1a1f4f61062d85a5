// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/model"
)

// DemoFormSlug is the slug of the seeded contact form.
const DemoFormSlug = "contact-us"

// Seed creates a published demo contact form unless it already exists.
func Seed(ctx context.Context, s *FormStore, reg *fields.Registry) error {
	exists, err := s.SlugExists(ctx, DemoFormSlug)
	if err != nil {
		return err
	}
	if exists {
		slog.Info("demo form already exists, skipping seed", "slug", DemoFormSlug)
		return nil
	}

	form := &model.Form{
		Title:      "Contact us",
		Intro:      "Send us a message and we will get back to you.",
		ButtonText: "Send",
		Response:   "**Thank you!** Your message has been received.",
		Status:     model.FormStatusPublished,
		SendEmail:  true,
	}
	if err := s.CreateForm(ctx, form); err != nil {
		return fmt.Errorf("creating demo form: %w", err)
	}

	demo := []model.Field{
		{Label: "Name", FieldType: fields.Text, Required: true, Visible: true},
		{Label: "Email", FieldType: fields.Email, Required: true, Visible: true,
			HelpText: "We only use it to reply."},
		{Label: "Topic", FieldType: fields.Select, Required: true, Visible: true,
			Choices: `[{"text":"General","score":0,"slug":"general"},{"text":"Support","score":1,"slug":"support"},{"text":"Sales","score":2,"slug":"sales"}]`},
		{Label: "Message", FieldType: fields.Textarea, Required: true, Visible: true},
		{Label: "Attachment", FieldType: fields.File, Visible: true},
		{Label: "Subscribe to newsletter", FieldType: fields.Checkbox, Visible: true},
	}
	for i := range demo {
		demo[i].FormID = form.ID
		demo[i].SortOrder = i
		if err := s.CreateField(ctx, reg, &demo[i]); err != nil {
			return fmt.Errorf("creating demo field: %w", err)
		}
	}

	slog.Info("created demo form", "id", form.ID, "slug", form.Slug, "fields", len(demo))
	return nil
}
