package forms

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-forms/internal/config"
	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/model"
)

func TestBuildJSON(t *testing.T) {
	reg := fields.NewBuilder(config.DefaultForms(), nil).Build()

	defs := []model.Field{
		{Label: "Age", Slug: "age", FieldType: fields.Number, Required: true, Meta: `{"min":1}`},
		{Label: "Colour", Slug: "colour", FieldType: fields.Select, Choices: `[{"text":"Red"},{"text":"Blue"}]`},
		{Label: "Notes", Slug: "notes", FieldType: fields.Textarea, Meta: `not json`, Choices: `{`},
		{Label: "Gone", Slug: "gone", FieldType: fields.ID(999)},
	}

	got := BuildJSON(reg, defs)

	// Round-trip through JSON so numbers compare the way a client sees them.
	raw, err := json.Marshal(got)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	want := []map[string]any{
		{"type": "TextInput", "titleText": "Age", "isAvoidable": false, "name": "age", "min": 1.0},
		{
			"type": "Select", "titleText": "Colour", "isAvoidable": true, "name": "colour",
			"choices": []any{
				map[string]any{"text": "Red", "value": "Red"},
				map[string]any{"text": "Blue", "value": "Blue"},
			},
		},
		{"type": "Textarea", "titleText": "Notes", "isAvoidable": true, "name": "notes"},
	}
	if diff := cmp.Diff(want, decoded); diff != "" {
		t.Errorf("BuildJSON() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildJSON_MetaCannotOverrideAttributes(t *testing.T) {
	reg := fields.NewBuilder(config.DefaultForms(), nil).Build()

	got := BuildJSON(reg, []model.Field{
		{Label: "Name", Slug: "name", FieldType: fields.Text, Meta: `{"name":"other","placeholder":"Ada"}`},
	})

	require.Len(t, got, 1)
	if got[0]["name"] != "name" || got[0]["placeholder"] != "Ada" {
		t.Errorf("BuildJSON() = %v", got[0])
	}
}

func TestBuildJSON_ClientWidgets(t *testing.T) {
	b := fields.NewBuilder(config.DefaultForms(), nil)
	require.NoError(t, b.AddTemplate(fields.TemplateConfig{
		Name:     "Survey widgets",
		Strategy: fields.Str("frontend"),
		Fields: &[]fields.FieldConfig{{
			FieldID: fields.Int(100),
			Name:    fields.Str("Horizontal slider"),
			Type:    fields.Str("forms.FloatField"),
			Widget:  fields.Str("HorizontalSlider"),
		}},
	}))
	reg := b.Build()

	got := BuildJSON(reg, []model.Field{{Label: "Rate us", Slug: "rate-us", FieldType: 100, Meta: `{"max":10}`}})
	require.Len(t, got, 1)
	if got[0]["type"] != "HorizontalSlider" {
		t.Errorf("type = %v", got[0]["type"])
	}

	js, err := EncodeJSON(got)
	require.NoError(t, err)
	if string(js) == "" || js[0] != '[' {
		t.Errorf("EncodeJSON() = %q", js)
	}
}
