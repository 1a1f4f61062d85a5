// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package fields

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/olegiv/ocms-forms/internal/config"
	"github.com/olegiv/ocms-forms/internal/util"
)

// Descriptor describes one registered field type.
type Descriptor struct {
	ID   ID
	Name string
	// ValueClass validates submitted values; nil means pass-through.
	ValueClass ValueClass
	Widget     Widget

	MetaRequiredKeys    []string
	MetaOptionalKeys    []string
	ChoicesRequiredKeys []string
	ChoicesOptionalKeys []string

	// Template is the name of the extension template that declared the
	// type, empty for built-ins.
	Template string
}

// IsChoice reports whether the type's values come from its choices.
func (d Descriptor) IsChoice() bool {
	_, ok := d.ValueClass.(ChoiceClass)
	return ok
}

// IsMultiple reports whether the type accepts several values.
func (d Descriptor) IsMultiple() bool {
	cc, ok := d.ValueClass.(ChoiceClass)
	return ok && cc.Multiple()
}

// IsFile reports whether the type receives an upload.
func (d Descriptor) IsFile() bool {
	_, ok := d.ValueClass.(FileField)
	return ok
}

// IsEmail reports whether submitted values are email addresses.
func (d Descriptor) IsEmail() bool {
	_, ok := d.ValueClass.(EmailField)
	return ok
}

// Clean runs the value class over in. Pass-through types return the first
// submitted value unchanged, still honouring Required.
func (d Descriptor) Clean(in Input) (any, error) {
	if d.ValueClass != nil {
		return d.ValueClass.Clean(in)
	}
	if len(in.Values) == 0 || in.Values[0] == "" {
		if in.Required {
			return nil, invalid(msgRequired)
		}
		return "", nil
	}
	return in.Values[0], nil
}

func (d Descriptor) clone() Descriptor {
	d.MetaRequiredKeys = slices.Clone(d.MetaRequiredKeys)
	d.MetaOptionalKeys = slices.Clone(d.MetaOptionalKeys)
	d.ChoicesRequiredKeys = slices.Clone(d.ChoicesRequiredKeys)
	d.ChoicesOptionalKeys = slices.Clone(d.ChoicesOptionalKeys)
	return d
}

// NamedID pairs a field type id with its display name.
type NamedID struct {
	ID   ID
	Name string
}

// Template is a registered extension template.
type Template struct {
	Name     string
	Slug     string
	Strategy Strategy
	Legacy   bool
	IDs      []ID
}

// TemplateChoice pairs a template slug with its display name.
type TemplateChoice struct {
	Slug string
	Name string
}

// builtinNames lists the built-in types in display order.
var builtinNames = []NamedID{
	{Text, "Single line text"},
	{Textarea, "Multi line text"},
	{Email, "Email"},
	{Number, "Number"},
	{URL, "URL"},
	{Checkbox, "Check box"},
	{CheckboxMultiple, "Check boxes"},
	{Select, "Drop down"},
	{SelectMultiple, "Multi select"},
	{RadioMultiple, "Radio buttons"},
	{File, "File upload"},
	{Date, "Date"},
	{DateTime, "Date/time"},
	{DOB, "Date of birth"},
	{Hidden, "Hidden"},
}

var builtinClasses = map[ID]ValueClass{
	Text:             CharField{},
	Textarea:         CharField{},
	Email:            EmailField{},
	Checkbox:         BooleanField{},
	CheckboxMultiple: MultipleChoiceField{},
	Select:           ChoiceField{},
	SelectMultiple:   MultipleChoiceField{},
	RadioMultiple:    ChoiceField{},
	File:             FileField{},
	Date:             DateField{},
	DateTime:         DateTimeField{},
	DOB:              DateField{},
	Hidden:           CharField{},
	Number:           FloatField{},
	URL:              URLField{},
}

// defaultWidget is the widget a value class renders with unless the type
// asks for a specialised one.
func defaultWidget(vc ValueClass) Renderer {
	w := builtinWidgets()
	switch vc.(type) {
	case BooleanField:
		return w["CheckboxInput"]
	case ChoiceField:
		return w["Select"]
	case MultipleChoiceField:
		return w["SelectMultiple"]
	case FileField:
		return w["FileInput"]
	case DateField:
		return w["DateInput"]
	case DateTimeField:
		return w["DateTimeInput"]
	default:
		return w["TextInput"]
	}
}

func builtinWidgetFor(id ID, useHTML5 bool) Renderer {
	w := builtinWidgets()
	if useHTML5 {
		switch id {
		case Date, DOB:
			return InputWidget{WidgetName: "DateInput", InputType: "date"}
		case DateTime:
			return InputWidget{WidgetName: "DateTimeInput", InputType: "datetime-local"}
		case Email:
			return InputWidget{WidgetName: "TextInput", InputType: "email"}
		case Number:
			return InputWidget{WidgetName: "TextInput", InputType: "number"}
		case URL:
			return InputWidget{WidgetName: "TextInput", InputType: "url"}
		}
	}
	switch id {
	case Textarea:
		return w["Textarea"]
	case CheckboxMultiple:
		return w["CheckboxSelectMultiple"]
	case RadioMultiple:
		return w["RadioSelect"]
	case Date, DOB:
		return w["SelectDateWidget"]
	case Hidden:
		return w["HiddenInput"]
	}
	return defaultWidget(builtinClasses[id])
}

// Builder assembles a Registry. It is used once at startup; Build freezes
// the result and further changes fail with ErrRegistryBuilt.
type Builder struct {
	settings  config.Forms
	catalog   *Catalog
	descs     map[ID]Descriptor
	order     []ID
	templates []Template
	built     bool
}

// NewBuilder returns a builder pre-loaded with the built-in field types.
// A nil catalog means the built-in catalog.
func NewBuilder(settings config.Forms, catalog *Catalog) *Builder {
	if catalog == nil {
		catalog = NewCatalog()
	}
	b := &Builder{
		settings: settings,
		catalog:  catalog,
		descs:    make(map[ID]Descriptor, len(builtinNames)),
	}
	for _, n := range builtinNames {
		b.descs[n.ID] = Descriptor{
			ID:                  n.ID,
			Name:                n.Name,
			ValueClass:          builtinClasses[n.ID],
			Widget:              ServerWidget(builtinWidgetFor(n.ID, settings.UseHTML5)),
			MetaRequiredKeys:    []string{},
			MetaOptionalKeys:    []string{},
			ChoicesRequiredKeys: []string{"text", "score", "slug"},
			ChoicesOptionalKeys: []string{},
		}
		b.order = append(b.order, n.ID)
	}
	return b
}

// AddTemplate registers every field type declared by tc. The template is
// applied atomically: on error nothing from it is registered.
func (b *Builder) AddTemplate(tc TemplateConfig) error {
	if b.built {
		return ErrRegistryBuilt
	}
	if tc.Fields == nil {
		return &ConfigError{Template: tc.Name, Key: "fields", Err: ErrMissingKey}
	}
	if tc.Strategy == nil {
		return &ConfigError{Template: tc.Name, Key: "strategy", Err: ErrMissingKey}
	}
	strategy, err := ParseStrategy(*tc.Strategy)
	if err != nil {
		return &ConfigError{Template: tc.Name, Key: "strategy", Value: *tc.Strategy, Err: ErrUnknownStrategy}
	}

	next := b.maxID() + 1
	pending := make([]Descriptor, 0, len(*tc.Fields))
	seen := make(map[ID]bool, len(*tc.Fields))

	for _, fc := range *tc.Fields {
		switch {
		case fc.Name == nil:
			return &ConfigError{Template: tc.Name, Key: "name", Err: ErrMissingKey}
		case fc.Type == nil:
			return &ConfigError{Template: tc.Name, Key: "type", Err: ErrMissingKey}
		case fc.Widget == nil:
			return &ConfigError{Template: tc.Name, Key: "widget", Err: ErrMissingKey}
		}

		var id ID
		if tc.Legacy {
			// legacy templates allocate ids in declaration order; field_id is ignored
			id = next
			next++
		} else {
			if fc.FieldID == nil {
				return &ConfigError{Template: tc.Name, Key: "field_id", Err: ErrMissingKey}
			}
			id = ID(*fc.FieldID)
		}

		if _, exists := b.descs[id]; exists || seen[id] {
			return &ConfigError{Template: tc.Name, ID: id, Field: *fc.Name, Err: ErrDuplicateID}
		}
		seen[id] = true

		d := Descriptor{
			ID:                  id,
			Name:                *fc.Name,
			Template:            tc.Name,
			MetaRequiredKeys:    concat(fc.MetaRequiredKeys, tc.MetaRequiredKeys),
			MetaOptionalKeys:    concat(fc.MetaOptionalKeys, tc.MetaOptionalKeys),
			ChoicesRequiredKeys: concat(fc.ChoicesRequiredKeys, tc.ChoicesRequiredKeys, []string{"text"}),
			ChoicesOptionalKeys: concat(fc.ChoicesOptionalKeys, tc.ChoicesOptionalKeys),
		}

		if path := strings.TrimSpace(*fc.Type); path != "" {
			vc, err := b.catalog.ImportValueClass(path)
			if err != nil {
				return &ConfigError{Template: tc.Name, Key: "type", Value: path, Err: err}
			}
			d.ValueClass = vc
		}

		switch strategy {
		case Backend:
			r, err := b.catalog.ImportWidget(*fc.Widget)
			if err != nil {
				return &ConfigError{Template: tc.Name, Key: "widget", Value: *fc.Widget, Err: err}
			}
			d.Widget = ServerWidget(r)
		case Frontend:
			d.Widget = ClientWidget(*fc.Widget)
		}

		pending = append(pending, d)
	}

	t := Template{
		Name:     tc.Name,
		Slug:     util.Slugify(tc.Name),
		Strategy: strategy,
		Legacy:   tc.Legacy,
	}
	for _, d := range pending {
		b.descs[d.ID] = d
		b.order = append(b.order, d.ID)
		t.IDs = append(t.IDs, d.ID)
	}
	b.templates = append(b.templates, t)
	return nil
}

func (b *Builder) maxID() ID {
	var m ID
	for id := range b.descs {
		m = max(m, id)
	}
	return m
}

func concat(lists ...[]string) []string {
	out := []string{}
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// Build freezes the builder and returns the registry.
func (b *Builder) Build() *Registry {
	b.built = true
	r := &Registry{
		descs:     make(map[ID]Descriptor, len(b.descs)),
		order:     slices.Clone(b.order),
		templates: make([]Template, len(b.templates)),
	}
	for id, d := range b.descs {
		r.descs[id] = d.clone()
	}
	for i, t := range b.templates {
		t.IDs = slices.Clone(t.IDs)
		r.templates[i] = t
	}
	return r
}

// NewRegistry builds a registry from the built-in types plus the extension
// templates declared in settings.ExtraFieldsPath.
func NewRegistry(settings config.Forms, catalog *Catalog) (*Registry, error) {
	templates, err := LoadTemplates(settings.ExtraFieldsPath)
	if err != nil {
		return nil, err
	}
	b := NewBuilder(settings, catalog)
	for _, tc := range templates {
		if err := b.AddTemplate(tc); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// Registry is the read-only catalog of field types. It is safe for
// concurrent use.
type Registry struct {
	descs     map[ID]Descriptor
	order     []ID
	templates []Template
}

// Get returns the descriptor for id.
func (r *Registry) Get(id ID) (Descriptor, bool) {
	d, ok := r.descs[id]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// MustGet is like Get but panics on an unknown id.
func (r *Registry) MustGet(id ID) Descriptor {
	d, ok := r.Get(id)
	if !ok {
		panic(fmt.Errorf("%w: %d", ErrUnknownFieldTypeID, id))
	}
	return d
}

// Has reports whether id is registered.
func (r *Registry) Has(id ID) bool {
	_, ok := r.descs[id]
	return ok
}

// IDs returns every registered id in ascending order.
func (r *Registry) IDs() []ID {
	return slices.Sorted(maps.Keys(r.descs))
}

// Names returns id/name pairs, built-ins first in display order, then
// extension types in registration order.
func (r *Registry) Names() []NamedID {
	out := make([]NamedID, len(r.order))
	for i, id := range r.order {
		out[i] = NamedID{ID: id, Name: r.descs[id].Name}
	}
	return out
}

// Templates returns the registered extension templates in order.
func (r *Registry) Templates() []Template {
	out := make([]Template, len(r.templates))
	for i, t := range r.templates {
		t.IDs = slices.Clone(t.IDs)
		out[i] = t
	}
	return out
}

// TemplateChoices returns slug/name pairs for every extension template.
func (r *Registry) TemplateChoices() []TemplateChoice {
	out := make([]TemplateChoice, len(r.templates))
	for i, t := range r.templates {
		out[i] = TemplateChoice{Slug: t.Slug, Name: t.Name}
	}
	return out
}

// TemplateForSlug maps a slugified template name back to its template.
// The zero Template and false are returned when nothing matches.
func (r *Registry) TemplateForSlug(slug string) (Template, bool) {
	for _, t := range r.templates {
		if t.Slug == slug {
			t.IDs = slices.Clone(t.IDs)
			return t, true
		}
	}
	return Template{}, false
}

// StrategyFor returns the rendering strategy of the template identified by
// slug. Forms without a matching template render server-side.
func (r *Registry) StrategyFor(templateSlug string) Strategy {
	if t, ok := r.TemplateForSlug(templateSlug); ok {
		return t.Strategy
	}
	return Backend
}

// ValidateMeta reports the first required metadata key missing from meta.
func (r *Registry) ValidateMeta(id ID, meta map[string]any) error {
	d, ok := r.descs[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownFieldTypeID, id)
	}
	for _, k := range d.MetaRequiredKeys {
		if _, ok := meta[k]; !ok {
			return fmt.Errorf("%w: %s requires meta key %q", ErrMissingKey, d.Name, k)
		}
	}
	return nil
}

// ValidateChoice reports the first required key missing from a choice.
func (r *Registry) ValidateChoice(id ID, choice Choice) error {
	d, ok := r.descs[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownFieldTypeID, id)
	}
	for _, k := range d.ChoicesRequiredKeys {
		if _, ok := choice[k]; !ok {
			return fmt.Errorf("%w: %s choices require key %q", ErrMissingKey, d.Name, k)
		}
	}
	return nil
}
