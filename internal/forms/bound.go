// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package forms

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/ocms-forms/internal/config"
	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/model"
	"github.com/olegiv/ocms-forms/internal/util"
)

// helpTextPolicy allows basic inline formatting in field help text.
var helpTextPolicy = bluemonday.UGCPolicy()

// BoundField is one visible field of a form together with its submitted
// (or initial) values.
type BoundField struct {
	Field  model.Field
	Desc   fields.Descriptor
	Values []string
	Files  []*multipart.FileHeader
	Errors []string

	choices []fields.Choice
	meta    map[string]any
	widget  fields.Widget
}

// Name is the form input name of the field.
func (bf *BoundField) Name() string {
	return bf.Field.Slug
}

// ID is the HTML id of the field's input.
func (bf *BoundField) ID() string {
	return "id_" + bf.Field.Slug
}

// HelpText returns the sanitised help text.
func (bf *BoundField) HelpText() template.HTML {
	return template.HTML(helpTextPolicy.Sanitize(bf.Field.HelpText))
}

// Widget renders the field's input.
func (bf *BoundField) Widget() (template.HTML, error) {
	r, ok := bf.widget.Renderer()
	if !ok {
		return "", fmt.Errorf("field %q: widget %q has no server-side renderer", bf.Field.Slug, bf.widget.Name())
	}
	attrs := map[string]string{}
	if bf.Field.Placeholder != "" {
		attrs["placeholder"] = bf.Field.Placeholder
	}
	return r.Render(fields.WidgetContext{
		Name:     bf.Name(),
		ID:       bf.ID(),
		Values:   bf.Values,
		Choices:  bf.choices,
		Required: bf.Field.Required,
		Attrs:    attrs,
	})
}

// BoundForm validates a submission against the fields of a form.
type BoundForm struct {
	form     *model.Form
	fields   []*BoundField
	settings config.Forms
	bound    bool

	validated bool
	errors    map[string][]string
	cleaned   map[string]any
}

// NewBoundForm builds the form for defs. A nil data means unbound: fields
// show their defaults and the form is never valid. Invisible fields and
// fields of unknown type are left out.
func NewBoundForm(reg *fields.Registry, settings config.Forms, form *model.Form, defs []model.Field, data url.Values, files map[string][]*multipart.FileHeader) *BoundForm {
	b := &BoundForm{
		form:     form,
		settings: settings,
		bound:    data != nil,
	}

	for _, def := range defs {
		if !def.Visible {
			continue
		}
		desc, ok := reg.Get(def.FieldType)
		if !ok {
			slog.Warn("skipping field of unknown type",
				"form_slug", form.Slug, "field", def.Slug, "field_type", int(def.FieldType))
			continue
		}

		bf := &BoundField{Field: def, Desc: desc, widget: desc.Widget}
		bf.choices, _ = def.ParsedChoices()
		bf.meta, _ = def.ParsedMeta()
		if def.FieldType == fields.DOB {
			if r, ok := desc.Widget.Renderer(); ok {
				if _, isSelect := r.(fields.SelectDate); isSelect {
					bf.widget = fields.ServerWidget(fields.SelectDate{Years: birthYears(time.Now().Year())})
				}
			}
		}

		if b.bound {
			bf.Values = fields.ExtractValues(bf.widget, data, def.Slug)
			bf.Files = files[def.Slug]
		} else {
			bf.Values = initialValues(def, desc)
		}
		b.fields = append(b.fields, bf)
	}
	return b
}

// birthYears runs from this year back to 1900.
func birthYears(this int) []int {
	years := make([]int, 0, this-1900+1)
	for y := this; y >= 1900; y-- {
		years = append(years, y)
	}
	return years
}

func initialValues(def model.Field, desc fields.Descriptor) []string {
	if def.Default == "" {
		return nil
	}
	if desc.IsMultiple() {
		return util.SplitList(def.Default)
	}
	return []string{def.Default}
}

// Form returns the form definition.
func (b *BoundForm) Form() *model.Form {
	return b.form
}

// Fields returns the visible fields in display order.
func (b *BoundForm) Fields() []*BoundField {
	return b.fields
}

// IsBound reports whether the form carries submitted data.
func (b *BoundForm) IsBound() bool {
	return b.bound
}

// IsMultipart reports whether the form needs a multipart encoding.
func (b *BoundForm) IsMultipart() bool {
	for _, bf := range b.fields {
		if bf.Desc.IsFile() {
			return true
		}
	}
	return false
}

// IsValid cleans every field once and reports whether all passed.
func (b *BoundForm) IsValid() bool {
	if !b.bound {
		return false
	}
	b.validate()
	return len(b.errors) == 0
}

func (b *BoundForm) validate() {
	if b.validated {
		return
	}
	b.validated = true
	b.errors = make(map[string][]string)
	b.cleaned = make(map[string]any, len(b.fields))

	for _, bf := range b.fields {
		v, err := bf.Desc.Clean(fields.Input{
			Values:    bf.Values,
			Files:     bf.Files,
			Required:  bf.Field.Required,
			Choices:   bf.choices,
			Meta:      bf.meta,
			MaxLength: b.settings.FieldMaxLength,
		})
		if err != nil {
			msg := err.Error()
			var ve *fields.ValidationError
			if errors.As(err, &ve) {
				msg = ve.Message
			}
			bf.Errors = append(bf.Errors, msg)
			b.errors[bf.Name()] = bf.Errors
			continue
		}
		b.cleaned[bf.Name()] = v
	}
}

// Errors returns the validation messages of each invalid field keyed by
// field slug.
func (b *BoundForm) Errors() map[string][]string {
	if !b.bound {
		return map[string][]string{}
	}
	b.validate()
	return b.errors
}

// CleanedData returns the coerced values of valid fields keyed by slug.
func (b *BoundForm) CleanedData() map[string]any {
	if !b.bound {
		return map[string]any{}
	}
	b.validate()
	return b.cleaned
}

// EmailTo returns the first submitted address of an email field, or ""
// when the form has none.
func (b *BoundForm) EmailTo() string {
	for _, bf := range b.fields {
		if bf.Desc.IsEmail() {
			s, _ := b.CleanedData()[bf.Name()].(string)
			return s
		}
	}
	return ""
}

// Files returns the uploads that passed validation keyed by field slug.
func (b *BoundForm) Files() map[string]*multipart.FileHeader {
	out := make(map[string]*multipart.FileHeader)
	for slug, v := range b.CleanedData() {
		if fh, ok := v.(*multipart.FileHeader); ok && fh != nil {
			out[slug] = fh
		}
	}
	return out
}

// Values returns every field label with its display value, in field order.
func (b *BoundForm) Values() []LabeledValue {
	cleaned := b.CleanedData()
	out := make([]LabeledValue, 0, len(b.fields))
	for _, bf := range b.fields {
		out = append(out, LabeledValue{Label: bf.Field.Label, Value: fields.FormatValue(cleaned[bf.Name()])})
	}
	return out
}

// LabeledValue is one line of a submission summary.
type LabeledValue struct {
	Label string
	Value string
}

var fieldsTemplate = template.Must(template.New("form").Parse(
	`{{range .}}{{$f := .Field}}<p class="field field-{{$f.Field.Slug}}{{if $f.Errors}} has-error{{end}}">
{{- with $f.Errors}}<ul class="errorlist">{{range .}}<li>{{.}}</li>{{end}}</ul>{{end -}}
<label for="{{$f.ID}}">{{$f.Field.Label}}{{if $f.Field.Required}} *{{end}}</label> {{.Input}}
{{- with $f.HelpText}} <span class="helptext">{{.}}</span>{{end}}</p>
{{end}}`))

// AsHTML renders every field as a paragraph with label, widget, help text
// and errors.
func (b *BoundForm) AsHTML() (template.HTML, error) {
	type row struct {
		Field *BoundField
		Input template.HTML
	}
	rows := make([]row, 0, len(b.fields))
	for _, bf := range b.fields {
		input, err := bf.Widget()
		if err != nil {
			return "", err
		}
		rows = append(rows, row{Field: bf, Input: input})
	}

	var buf bytes.Buffer
	if err := fieldsTemplate.Execute(&buf, rows); err != nil {
		return "", fmt.Errorf("rendering form %q: %w", b.form.Slug, err)
	}
	return template.HTML(strings.TrimSpace(buf.String())), nil
}
