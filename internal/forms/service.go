// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package forms interprets stored form definitions: it builds the page a
// form is rendered from, validates submissions, persists entries and sends
// the notification emails.
package forms

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/ocms-forms/internal/config"
	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/hook"
	"github.com/olegiv/ocms-forms/internal/metrics"
	"github.com/olegiv/ocms-forms/internal/model"
	"github.com/olegiv/ocms-forms/internal/rules"
	"github.com/olegiv/ocms-forms/internal/util"
)

// ErrLoginRequired is returned when an anonymous visitor requests a form
// that needs an authenticated user.
var ErrLoginRequired = errors.New("forms: login required")

// Store is the persistence the pipeline needs.
type Store interface {
	// Published returns the form with slug if identity may see it.
	Published(ctx context.Context, identity model.Identity, slug string) (*model.Form, error)
	Fields(ctx context.Context, formID int64) ([]model.Field, error)
	CreateEntry(ctx context.Context, entry *model.Entry) error
}

// Options holds the collaborators of a Service. Rules, Metrics, Now and
// Logger are optional.
type Options struct {
	Store       Store
	Registry    *fields.Registry
	Mailer      Mailer
	Hooks       *hook.Registry
	Rules       *rules.Registry
	Metrics     *metrics.Metrics
	Settings    config.Forms
	DefaultFrom string
	Now         func() time.Time
	Logger      *slog.Logger
}

// Service runs the render and submit flows of public forms.
type Service struct {
	store       Store
	registry    *fields.Registry
	mailer      Mailer
	hooks       *hook.Registry
	rules       *rules.Registry
	metrics     *metrics.Metrics
	settings    config.Forms
	defaultFrom string
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a service from opts.
func NewService(opts Options) *Service {
	s := &Service{
		store:       opts.Store,
		registry:    opts.Registry,
		mailer:      opts.Mailer,
		hooks:       opts.Hooks,
		rules:       opts.Rules,
		metrics:     opts.Metrics,
		settings:    opts.Settings,
		defaultFrom: opts.DefaultFrom,
		now:         opts.Now,
		logger:      opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.mailer == nil {
		s.mailer = LogMailer{Logger: s.logger}
	}
	if s.hooks == nil {
		s.hooks = hook.NewRegistry(s.logger)
	}
	return s
}

// Detail is what a form page renders from.
type Detail struct {
	Form     *model.Form
	Fields   []model.Field
	Strategy fields.Strategy
	// Bound is the server-side form (backend strategy).
	Bound *BoundForm
	// JSON describes the fields for a client-side renderer (frontend strategy).
	JSON template.JS
}

// TemplateNames lists the page templates for the form, most specific first.
func (d *Detail) TemplateNames() []string {
	return DetailTemplates(d.Form)
}

// DetailTemplates lists the page templates for form, most specific first.
func DetailTemplates(form *model.Form) []string {
	if form.Template != "" {
		return []string{"forms/" + form.Template + "/form_detail.html", "forms/form_detail.html"}
	}
	return []string{"forms/form_detail.html"}
}

// Detail loads the form with slug for identity and prepares it for
// rendering according to its template's strategy.
func (s *Service) Detail(ctx context.Context, slug string, identity model.Identity) (*Detail, error) {
	form, err := s.store.Published(ctx, identity, slug)
	if err != nil {
		return nil, err
	}
	if form.LoginRequired && !identity.Authenticated() {
		return nil, ErrLoginRequired
	}

	defs, err := s.store.Fields(ctx, form.ID)
	if err != nil {
		return nil, err
	}

	d := &Detail{Form: form, Fields: defs, Strategy: s.registry.StrategyFor(form.Template)}
	switch d.Strategy {
	case fields.Backend:
		d.Bound = NewBoundForm(s.registry, s.settings, form, defs, nil, nil)
	case fields.Frontend:
		if d.JSON, err = EncodeJSON(BuildJSON(s.registry, defs)); err != nil {
			return nil, err
		}
	default:
		return nil, &fields.ConfigError{
			Template: form.Template,
			Key:      "strategy",
			Value:    d.Strategy.String(),
			Err:      fields.ErrUnknownStrategy,
		}
	}
	return d, nil
}

// Sent returns the form whose confirmation page identity requests. The
// page is only shown to authenticated users.
func (s *Service) Sent(ctx context.Context, slug string, identity model.Identity) (*model.Form, error) {
	if !identity.Authenticated() {
		return nil, ErrLoginRequired
	}
	return s.store.Published(ctx, identity, slug)
}

// SubmitRequest is one posted form.
type SubmitRequest struct {
	Slug     string
	Identity model.Identity
	Data     url.Values
	Files    map[string][]*multipart.FileHeader
}

// SubmitResult is the outcome of a submission. Detail and Bound are set
// for every result so invalid submissions can be re-rendered; Entry is set
// once the entry has been persisted.
type SubmitResult struct {
	Valid  bool
	Detail *Detail
	Bound  *BoundForm
	Entry  *model.Entry
}

// InvalidEvent is the payload of hook.SubmissionInvalid.
type InvalidEvent struct {
	Form  *model.Form
	Bound *BoundForm
}

// ValidEvent is the payload of hook.SubmissionValid.
type ValidEvent struct {
	Form  *model.Form
	Bound *BoundForm
	Entry *model.Entry
}

// Submit validates req and, when valid, reads the attachments, stores the
// uploads and the entry, notifies subscribers, runs the form's rule and
// sends the emails, in that order. Email failures are returned only when
// the fail-silently policy is off; the entry is persisted regardless.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	d, err := s.Detail(ctx, req.Slug, req.Identity)
	if err != nil {
		return nil, err
	}
	form := d.Form

	data := req.Data
	if data == nil {
		data = url.Values{}
	}
	bound := NewBoundForm(s.registry, s.settings, form, d.Fields, data, req.Files)
	if d.Strategy == fields.Backend {
		d.Bound = bound
	}
	res := &SubmitResult{Detail: d, Bound: bound}

	if !bound.IsValid() {
		s.metrics.Submission(form.Slug, metrics.ResultInvalid)
		s.notify(ctx, hook.SubmissionInvalid, form, func() any { return &InvalidEvent{Form: form, Bound: bound} })
		return res, nil
	}

	// Upload streams are read completely before anything is persisted.
	attachments, err := readAttachments(bound)
	if err != nil {
		s.metrics.Submission(form.Slug, metrics.ResultError)
		return nil, err
	}

	entry, written, err := s.buildEntry(form, bound, attachments)
	if err != nil {
		s.metrics.Submission(form.Slug, metrics.ResultError)
		return nil, err
	}
	if err := s.store.CreateEntry(ctx, entry); err != nil {
		s.removeUploads(written)
		s.metrics.Submission(form.Slug, metrics.ResultError)
		return nil, fmt.Errorf("saving entry for form %q: %w", form.Slug, err)
	}
	res.Valid, res.Entry = true, entry
	s.metrics.Submission(form.Slug, metrics.ResultValid)
	s.logger.Info("form entry saved", "form_slug", form.Slug, "entry_id", entry.ID)

	s.notify(ctx, hook.SubmissionValid, form, func() any { return &ValidEvent{Form: form, Bound: bound, Entry: entry} })

	ruleErr := s.runRule(ctx, form, bound, entry, data)
	return res, errors.Join(ruleErr, s.sendEmails(ctx, form, bound, entry, attachments))
}

// notify emits name; the payload is only built when someone subscribed.
func (s *Service) notify(ctx context.Context, name string, form *model.Form, payload func() any) {
	if !s.hooks.HasHandlers(name) {
		return
	}
	if err := s.hooks.Notify(ctx, name, payload()); err != nil {
		s.logger.Warn("form hook failed", "hook", name, "form_slug", form.Slug, "error", err, "category", "forms")
	}
}

// fileAttachment pairs an upload with the field it was posted to.
type fileAttachment struct {
	Attachment
	FieldSlug string
}

func readAttachments(bound *BoundForm) ([]fileAttachment, error) {
	files := bound.Files()
	var out []fileAttachment
	for _, bf := range bound.Fields() {
		fh, ok := files[bf.Name()]
		if !ok {
			continue
		}
		content, err := readUpload(fh)
		if err != nil {
			return nil, fmt.Errorf("reading upload %q of field %q: %w", fh.Filename, bf.Name(), err)
		}
		out = append(out, fileAttachment{
			Attachment: Attachment{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Content:     content,
			},
			FieldSlug: bf.Name(),
		})
	}
	return out, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// buildEntry writes the uploads below the upload root and assembles the
// entry. It returns the absolute paths written so they can be removed if
// the entry is not stored.
func (s *Service) buildEntry(form *model.Form, bound *BoundForm, attachments []fileAttachment) (*model.Entry, []string, error) {
	entry := &model.Entry{FormID: form.ID, EntryTime: s.now().UTC()}

	stored := make(map[string]string, len(attachments))
	var written []string
	for _, a := range attachments {
		rel := path.Join(form.Slug, uuid.NewString()+"-"+uploadBasename(a.Filename))
		abs, err := util.SafeJoinPath(s.settings.UploadRoot, filepath.FromSlash(rel))
		if err != nil {
			s.removeUploads(written)
			return nil, nil, err
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			s.removeUploads(written)
			return nil, nil, fmt.Errorf("creating upload directory: %w", err)
		}
		if err := os.WriteFile(abs, a.Content, 0o644); err != nil {
			s.removeUploads(written)
			return nil, nil, fmt.Errorf("storing upload %q: %w", a.Filename, err)
		}
		written = append(written, abs)
		stored[a.FieldSlug] = rel

		bf := bound.field(a.FieldSlug)
		entry.Files = append(entry.Files, model.EntryFile{
			FieldID:  bf.Field.ID,
			Path:     rel,
			Filename: a.Filename,
			Size:     int64(len(a.Content)),
		})
	}

	cleaned := bound.CleanedData()
	for _, bf := range bound.Fields() {
		value := fields.FormatValue(cleaned[bf.Name()])
		if bf.Desc.IsFile() {
			value = stored[bf.Name()]
		}
		entry.Fields = append(entry.Fields, model.FieldEntry{FieldID: bf.Field.ID, Value: value})
	}
	return entry, written, nil
}

func (s *Service) removeUploads(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			s.logger.Warn("failed to remove upload", "path", p, "error", err)
		}
	}
}

// uploadBasename strips any client-side directory from name.
func uploadBasename(name string) string {
	base, err := util.SanitizeFilename(name)
	if err != nil {
		return "upload"
	}
	return base
}

func (b *BoundForm) field(slug string) *BoundField {
	for _, bf := range b.fields {
		if bf.Name() == slug {
			return bf
		}
	}
	return nil
}

// runRule runs the form's rule when a rules path is configured. A missing
// rule module means there is nothing to run; a rule that fails is logged.
func (s *Service) runRule(ctx context.Context, form *model.Form, bound *BoundForm, entry *model.Entry, data url.Values) error {
	if s.rules == nil || !s.rules.Configured() {
		return nil
	}
	rule, err := s.rules.Lookup(form.Slug)
	if err != nil {
		return fmt.Errorf("looking up rule for form %q: %w", form.Slug, err)
	}
	if rule == nil {
		return nil
	}

	values := make(map[string]string, len(bound.Fields()))
	for _, fe := range entry.Fields {
		for _, bf := range bound.Fields() {
			if bf.Field.ID == fe.FieldID {
				values[bf.Name()] = fe.Value
			}
		}
	}
	if err := rule(ctx, rules.Input{FormSlug: form.Slug, EntryID: entry.ID, Values: values, Request: data}); err != nil {
		s.logger.Warn("form rule failed", "form_slug", form.Slug, "entry_id", entry.ID, "error", err, "category", "forms")
	}
	return nil
}

// Recipients returns the addresses the primary email goes to: the form's
// configured recipients, or else the submitted email address.
func Recipients(form *model.Form, bound *BoundForm) []string {
	if to := util.SplitList(form.EmailTo); len(to) > 0 {
		return to
	}
	if addr := bound.EmailTo(); addr != "" {
		return []string{addr}
	}
	return nil
}

// Subject is the configured subject, or "<title> - <entry time>".
func Subject(form *model.Form, entry *model.Entry) string {
	if form.EmailSubject != "" {
		return form.EmailSubject
	}
	return fmt.Sprintf("%s - %s", form.Title, entry.EntryTime.Format("2006-01-02 15:04:05"))
}

func (s *Service) sendEmails(ctx context.Context, form *model.Form, bound *BoundForm, entry *model.Entry, attachments []fileAttachment) error {
	ec := emailContext{Message: form.EmailMessage, Fields: bound.Values()}
	subject := Subject(form, entry)
	from := form.EmailFrom
	if from == "" {
		from = s.defaultFrom
	}
	to := Recipients(form, bound)

	var errs []error
	if len(to) > 0 && form.SendEmail {
		errs = append(errs, s.deliver(ctx, metrics.EmailPrimary, form, TemplateResponse, ec, Message{
			Subject: subject,
			From:    from,
			To:      to,
		}))
	}

	if copies := util.SplitList(form.EmailCopies); len(copies) > 0 {
		msg := Message{
			Subject: subject,
			From:    from,
			To:      copies,
			ReplyTo: to,
		}
		for _, a := range attachments {
			msg.Attachments = append(msg.Attachments, a.Attachment)
		}
		errs = append(errs, s.deliver(ctx, metrics.EmailCopies, form, TemplateResponseCopies, ec, msg))
	}
	return errors.Join(errs...)
}

func (s *Service) deliver(ctx context.Context, kind string, form *model.Form, tmpl string, ec emailContext, msg Message) error {
	body, err := renderEmail(tmpl, ec)
	if err == nil {
		msg.TextBody = body
		err = s.mailer.Send(ctx, msg)
	}
	if err == nil {
		s.metrics.Email(kind, metrics.EmailSent)
		return nil
	}

	s.metrics.Email(kind, metrics.EmailFailed)
	if s.settings.FailSilently() {
		s.logger.Warn("failed to send form email",
			"form_slug", form.Slug, "kind", kind, "error", err, "category", "email")
		return nil
	}
	return fmt.Errorf("sending %s email for form %q: %w", kind, form.Slug, err)
}
