// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package forms

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"maps"

	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/model"
)

// BuildJSON describes defs for a client-side renderer. Each object is the
// field's meta merged with type, titleText, isAvoidable and name; choice
// lists get a value equal to each choice's text. Malformed meta or choices
// are treated as absent.
func BuildJSON(reg *fields.Registry, defs []model.Field) []map[string]any {
	out := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		desc, ok := reg.Get(def.FieldType)
		if !ok {
			slog.Warn("skipping field of unknown type in frontend JSON",
				"form_id", def.FormID, "field", def.Slug, "field_type", int(def.FieldType))
			continue
		}

		data := map[string]any{}
		if meta, ok := def.ParsedMeta(); ok {
			maps.Copy(data, meta)
		}
		data["type"] = desc.Widget.Name()
		data["titleText"] = def.Label
		data["isAvoidable"] = !def.Required
		data["name"] = def.Slug

		if choices, ok := def.ParsedChoices(); ok {
			list := make([]map[string]any, 0, len(choices))
			for _, c := range choices {
				item := maps.Clone(map[string]any(c))
				if item == nil {
					item = map[string]any{}
				}
				item["value"] = item["text"]
				list = append(list, item)
			}
			data["choices"] = list
		}
		out = append(out, data)
	}
	return out
}

// EncodeJSON renders the description for embedding in a page script.
func EncodeJSON(desc []map[string]any) (template.JS, error) {
	b, err := json.MarshalIndent(desc, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encoding frontend form: %w", err)
	}
	return template.JS(b), nil
}
