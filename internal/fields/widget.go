// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package fields

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"slices"
	"strconv"
	"time"
)

// Widget is how a field type is presented. It is either a server-side
// Renderer (backend strategy) or the opaque name of a client-side
// component (frontend strategy); the zero value is neither.
type Widget struct {
	strategy Strategy
	renderer Renderer
	client   string
}

// ServerWidget wraps a server-side renderer.
func ServerWidget(r Renderer) Widget {
	return Widget{strategy: Backend, renderer: r}
}

// ClientWidget names a client-side component.
func ClientWidget(name string) Widget {
	return Widget{strategy: Frontend, client: name}
}

// Strategy reports which variant the widget is.
func (w Widget) Strategy() Strategy {
	return w.strategy
}

// Name is the widget identifier exposed in frontend JSON descriptions.
func (w Widget) Name() string {
	if w.strategy == Backend {
		return w.renderer.Name()
	}
	return w.client
}

// Renderer returns the server-side renderer, if the widget has one.
func (w Widget) Renderer() (Renderer, bool) {
	return w.renderer, w.strategy == Backend
}

// WidgetContext is the per-field state handed to a renderer.
type WidgetContext struct {
	Name     string
	ID       string
	Values   []string
	Choices  []Choice
	Required bool
	Attrs    map[string]string
}

// Value returns the first submitted value.
func (wc WidgetContext) Value() string {
	if len(wc.Values) == 0 {
		return ""
	}
	return wc.Values[0]
}

// Selected reports whether a choice text is among the submitted values.
func (wc WidgetContext) Selected(text string) bool {
	return slices.Contains(wc.Values, text)
}

// Renderer renders a field as HTML.
type Renderer interface {
	Name() string
	Render(wc WidgetContext) (template.HTML, error)
}

// ValueExtractor is implemented by renderers that spread one value over
// several inputs and must reassemble it from the posted form.
type ValueExtractor interface {
	ValueFrom(form url.Values, name string) []string
}

// ExtractValues returns the submitted values for name, honouring renderers
// that implement ValueExtractor.
func ExtractValues(w Widget, form url.Values, name string) []string {
	if r, ok := w.Renderer(); ok {
		if ve, ok := r.(ValueExtractor); ok {
			return ve.ValueFrom(form, name)
		}
	}
	return form[name]
}

var widgetTemplates = template.Must(template.New("widgets").Funcs(template.FuncMap{
	"selected": func(wc WidgetContext, text string) bool { return wc.Selected(text) },
}).Parse(`
{{define "attrs"}}{{range $k, $v := .Attrs}} {{$k}}="{{$v}}"{{end}}{{if .Required}} required{{end}}{{end}}
{{define "input"}}<input type="{{.Type}}" name="{{.W.Name}}" id="{{.W.ID}}"{{if .ShowValue}} value="{{.W.Value}}"{{end}}{{template "attrs" .W}}>{{end}}
{{define "textarea"}}<textarea name="{{.Name}}" id="{{.ID}}" cols="40" rows="10"{{template "attrs" .}}>{{.Value}}</textarea>{{end}}
{{define "checkbox"}}<input type="checkbox" name="{{.Name}}" id="{{.ID}}"{{if .Value}} checked{{end}}{{template "attrs" .}}>{{end}}
{{define "select"}}<select name="{{.W.Name}}" id="{{.W.ID}}"{{if .Multiple}} multiple{{end}}{{template "attrs" .W}}>
{{- if not .Multiple}}<option value="">---------</option>{{end}}
{{- range .W.Choices}}<option value="{{.Text}}"{{if selected $.W .Text}} selected{{end}}>{{.Text}}</option>{{end -}}
</select>{{end}}
{{define "choicelist"}}<ul id="{{.W.ID}}">
{{- range $i, $c := .W.Choices}}<li><label for="{{$.W.ID}}_{{$i}}"><input type="{{$.Type}}" name="{{$.W.Name}}" id="{{$.W.ID}}_{{$i}}" value="{{$c.Text}}"{{if selected $.W $c.Text}} checked{{end}}> {{$c.Text}}</label></li>{{end -}}
</ul>{{end}}
{{define "selectdate"}}{{$w := .W}}<select name="{{$w.Name}}_month" id="{{$w.ID}}_month">{{range .Months}}<option value="{{.}}"{{if eq . $.Month}} selected{{end}}>{{.}}</option>{{end}}</select>
<select name="{{$w.Name}}_day" id="{{$w.ID}}_day">{{range .Days}}<option value="{{.}}"{{if eq . $.Day}} selected{{end}}>{{.}}</option>{{end}}</select>
<select name="{{$w.Name}}_year" id="{{$w.ID}}_year">{{range .Years}}<option value="{{.}}"{{if eq . $.Year}} selected{{end}}>{{.}}</option>{{end}}</select>{{end}}
`))

func execWidget(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := widgetTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering widget %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// InputWidget renders a single <input> element of the given type.
type InputWidget struct {
	WidgetName string
	InputType  string
	// HideValue suppresses redisplay of submitted values (file inputs).
	HideValue bool
}

func (i InputWidget) Name() string { return i.WidgetName }

func (i InputWidget) Render(wc WidgetContext) (template.HTML, error) {
	return execWidget("input", struct {
		W         WidgetContext
		Type      string
		ShowValue bool
	}{wc, i.InputType, !i.HideValue})
}

// TextareaWidget renders a multi line text box.
type TextareaWidget struct{}

func (TextareaWidget) Name() string { return "Textarea" }

func (TextareaWidget) Render(wc WidgetContext) (template.HTML, error) {
	return execWidget("textarea", wc)
}

// CheckboxInput renders a single checkbox.
type CheckboxInput struct{}

func (CheckboxInput) Name() string { return "CheckboxInput" }

func (CheckboxInput) Render(wc WidgetContext) (template.HTML, error) {
	return execWidget("checkbox", wc)
}

// SelectInput renders a drop down, or a multi select list.
type SelectInput struct {
	Multiple bool
}

func (s SelectInput) Name() string {
	if s.Multiple {
		return "SelectMultiple"
	}
	return "Select"
}

func (s SelectInput) Render(wc WidgetContext) (template.HTML, error) {
	return execWidget("select", struct {
		W        WidgetContext
		Multiple bool
	}{wc, s.Multiple})
}

// ChoiceList renders choices as a list of radio buttons or check boxes.
type ChoiceList struct {
	WidgetName string
	InputType  string // "radio" or "checkbox"
}

func (c ChoiceList) Name() string { return c.WidgetName }

func (c ChoiceList) Render(wc WidgetContext) (template.HTML, error) {
	return execWidget("choicelist", struct {
		W    WidgetContext
		Type string
	}{wc, c.InputType})
}

// SelectDate renders a date as three drop downs (month, day, year) and
// reassembles the posted parts into YYYY-MM-DD.
type SelectDate struct {
	// Years offered; defaults to the current year and the nine following.
	Years []int
}

func (SelectDate) Name() string { return "SelectDateWidget" }

func (s SelectDate) years() []int {
	if len(s.Years) > 0 {
		return s.Years
	}
	start := time.Now().Year()
	years := make([]int, 10)
	for i := range years {
		years[i] = start + i
	}
	return years
}

func (s SelectDate) Render(wc WidgetContext) (template.HTML, error) {
	var y, m, d int
	if t, err := time.Parse("2006-01-02", wc.Value()); err == nil {
		y, m, d = t.Year(), int(t.Month()), t.Day()
	}
	return execWidget("selectdate", struct {
		W                   WidgetContext
		Years, Months, Days []int
		Year, Month, Day    int
	}{wc, s.years(), intRange(1, 12), intRange(1, 31), y, m, d})
}

func (SelectDate) ValueFrom(form url.Values, name string) []string {
	y, m, d := form.Get(name+"_year"), form.Get(name+"_month"), form.Get(name+"_day")
	if y == "" && m == "" && d == "" {
		return form[name]
	}
	yi, errY := strconv.Atoi(y)
	mi, errM := strconv.Atoi(m)
	di, errD := strconv.Atoi(d)
	if errY != nil || errM != nil || errD != nil {
		// leave the value unparseable so the value class reports it
		return []string{y + "-" + m + "-" + d}
	}
	return []string{fmt.Sprintf("%04d-%02d-%02d", yi, mi, di)}
}

func intRange(lo, hi int) []int {
	r := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		r = append(r, i)
	}
	return r
}
