// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/forms"
	"github.com/olegiv/ocms-forms/internal/middleware"
	"github.com/olegiv/ocms-forms/internal/model"
	"github.com/olegiv/ocms-forms/internal/render"
	"github.com/olegiv/ocms-forms/internal/store"
)

// maxSubmissionBytes bounds a posted form including its uploads.
const maxSubmissionBytes = 32 << 20

// honeypotField is a hidden input that only bots fill in.
const honeypotField = "_website"

// FormsHandler serves the public form pages.
type FormsHandler struct {
	service  *forms.Service
	renderer *render.Renderer
	loginURL string
	logger   *slog.Logger
}

// NewFormsHandler creates a new FormsHandler.
func NewFormsHandler(service *forms.Service, renderer *render.Renderer, loginURL string, logger *slog.Logger) *FormsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FormsHandler{
		service:  service,
		renderer: renderer,
		loginURL: loginURL,
		logger:   logger,
	}
}

// FormPage is the data of the form detail template.
type FormPage struct {
	Form      *model.Form
	Action    string
	Backend   bool
	Multipart bool
	FormHTML  template.HTML
	JSON      template.JS
}

// SentPage is the data of the form sent template.
type SentPage struct {
	Form *model.Form
}

// ajaxResponse is returned to XMLHttpRequest posts of server-rendered forms.
type ajaxResponse struct {
	Errors  map[string][]string `json:"errors"`
	Form    template.HTML       `json:"form"`
	Message string              `json:"message"`
}

// FormURL returns the path of the form page.
func FormURL(slug string) string {
	return "/forms/" + url.PathEscape(slug) + "/"
}

// SentURL returns the path of the confirmation page.
func SentURL(slug string) string {
	return FormURL(slug) + "sent/"
}

// Detail handles GET /forms/{slug}/.
func (h *FormsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	d, err := h.service.Detail(r.Context(), slug, middleware.Identity(r))
	if err != nil {
		h.handleError(w, r, err, slug)
		return
	}
	h.renderDetail(w, r, http.StatusOK, d, d.Bound)
}

// Submit handles POST /forms/{slug}/.
func (h *FormsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)
	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			h.logger.Warn("parsing form submission failed", "form_slug", slug, "error", err)
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil {
			h.logger.Warn("parsing form submission failed", "form_slug", slug, "error", err)
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
	}

	if r.PostFormValue(honeypotField) != "" {
		h.logger.Info("honeypot triggered", "form_slug", slug, "ip", r.RemoteAddr)
		h.pretendSuccess(w, r, slug)
		return
	}

	req := forms.SubmitRequest{
		Slug:     slug,
		Identity: middleware.Identity(r),
		Data:     r.PostForm,
	}
	if r.MultipartForm != nil {
		req.Files = r.MultipartForm.File
	}

	res, err := h.service.Submit(r.Context(), req)
	if res == nil {
		h.handleError(w, r, err, slug)
		return
	}
	if err != nil {
		// The entry is saved; only a follow-up step such as email failed.
		h.logger.Error("form submission follow-up failed", "form_slug", slug, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if res.Valid && !middleware.IsAjax(r) {
		target := res.Detail.Form.RedirectURL
		if target == "" {
			target = SentURL(res.Detail.Form.Slug)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	h.renderDetail(w, r, http.StatusOK, res.Detail, res.Bound)
}

// Sent handles GET /forms/{slug}/sent/.
func (h *FormsHandler) Sent(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	form, err := h.service.Sent(r.Context(), slug, middleware.Identity(r))
	if err != nil {
		h.handleError(w, r, err, slug)
		return
	}
	if err := h.renderer.Render(w, http.StatusOK, []string{"forms/form_sent.html"}, render.TemplateData{
		Title: form.Title,
		Data:  SentPage{Form: form},
	}); err != nil {
		logAndInternalError(w, "rendering form sent page failed", "form_slug", slug, "error", err)
	}
}

// renderDetail writes the form page, or the JSON summary for ajax posts of
// server-rendered forms.
func (h *FormsHandler) renderDetail(w http.ResponseWriter, r *http.Request, status int, d *forms.Detail, bound *forms.BoundForm) {
	page := FormPage{
		Form:    d.Form,
		Action:  FormURL(d.Form.Slug),
		Backend: d.Strategy == fields.Backend,
		JSON:    d.JSON,
	}
	if page.Backend && bound != nil {
		html, err := bound.AsHTML()
		if err != nil {
			logAndInternalError(w, "rendering form fields failed", "form_slug", d.Form.Slug, "error", err)
			return
		}
		page.FormHTML = html
		page.Multipart = bound.IsMultipart()
	}

	if page.Backend && r.Method == http.MethodPost && middleware.IsAjax(r) {
		errs := map[string][]string{}
		if bound != nil && bound.IsBound() {
			errs = bound.Errors()
		}
		writeJSON(w, status, ajaxResponse{Errors: errs, Form: page.FormHTML, Message: d.Form.Response})
		return
	}

	if err := h.renderer.Render(w, status, d.TemplateNames(), render.TemplateData{
		Title: d.Form.Title,
		Data:  page,
	}); err != nil {
		logAndInternalError(w, "rendering form page failed", "form_slug", d.Form.Slug, "error", err)
	}
}

// pretendSuccess answers a bot as if its submission had been accepted.
func (h *FormsHandler) pretendSuccess(w http.ResponseWriter, r *http.Request, slug string) {
	if middleware.IsAjax(r) {
		writeJSON(w, http.StatusOK, ajaxResponse{Errors: map[string][]string{}})
		return
	}
	http.Redirect(w, r, SentURL(slug), http.StatusSeeOther)
}

func (h *FormsHandler) handleError(w http.ResponseWriter, r *http.Request, err error, slug string) {
	var cfgErr *fields.ConfigError
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, forms.ErrLoginRequired):
		middleware.RedirectToLogin(w, r, h.loginURL)
	case errors.As(err, &cfgErr):
		logAndInternalError(w, "form template misconfigured", "form_slug", slug, "template", cfgErr.Template, "error", err)
	default:
		logAndInternalError(w, "loading form failed", "form_slug", slug, "error", err)
	}
}
