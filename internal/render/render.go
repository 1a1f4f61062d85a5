// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render parses the page templates once and renders them inside
// the base layout.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

const baseLayout = "layouts/base.html"

// Renderer holds one parsed template set per page.
type Renderer struct {
	templates map[string]*template.Template
}

// Config holds renderer configuration.
type Config struct {
	TemplatesFS fs.FS
	// Pages is the directory walked for page templates.
	Pages string
}

// New parses every page under cfg.Pages together with the base layout and
// the partials. Pages are keyed by their path, e.g. "forms/form_detail.html".
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template)}

	partials, err := fs.Glob(cfg.TemplatesFS, "partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("listing partials: %w", err)
	}

	err = fs.WalkDir(cfg.TemplatesFS, cfg.Pages, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".html") {
			return nil
		}
		files := append([]string{baseLayout}, partials...)
		files = append(files, p)
		tmpl, err := template.New(path.Base(p)).Funcs(Funcs()).ParseFS(cfg.TemplatesFS, files...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", p, err)
		}
		r.templates[p] = tmpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Funcs returns the template helpers available to every page.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": Markdown,
		"formatDateTime": func(t time.Time) string {
			return t.Format("Jan 2, 2006 3:04 PM")
		},
	}
}

// Resolve returns the first of names that was parsed.
func (r *Renderer) Resolve(names ...string) (string, bool) {
	for _, n := range names {
		if _, ok := r.templates[n]; ok {
			return n, true
		}
	}
	return "", false
}

// TemplateData holds data passed to templates.
type TemplateData struct {
	Title       string
	Data        any
	CurrentYear int
}

// Render executes the first available of names with status. Output is
// buffered so a template error never leaves a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, names []string, data TemplateData) error {
	name, ok := r.Resolve(names...)
	if !ok {
		return fmt.Errorf("none of the templates %v exist", names)
	}
	data.CurrentYear = time.Now().Year()

	var buf bytes.Buffer
	if err := r.templates[name].ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("executing template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}

var markdownPolicy = bluemonday.UGCPolicy()

// Markdown renders author-supplied markdown (form intro and response) to
// sanitised HTML.
func Markdown(s string) template.HTML {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(markdownPolicy.SanitizeBytes(buf.Bytes()))
}
