package forms

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-forms/internal/config"
	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/hook"
	"github.com/olegiv/ocms-forms/internal/model"
	"github.com/olegiv/ocms-forms/internal/rules"
)

var errNotFound = errors.New("not found")

// memStore is an in-memory Store.
type memStore struct {
	forms   map[string]*model.Form
	fields  map[int64][]model.Field
	entries []*model.Entry
	// onCreate runs inside CreateEntry before the entry is recorded.
	onCreate func(*model.Entry)
}

func (s *memStore) Published(_ context.Context, identity model.Identity, slug string) (*model.Form, error) {
	f, ok := s.forms[slug]
	if !ok || (!identity.Staff && f.Status != model.FormStatusPublished) {
		return nil, errNotFound
	}
	return f, nil
}

func (s *memStore) Fields(_ context.Context, formID int64) ([]model.Field, error) {
	return s.fields[formID], nil
}

func (s *memStore) CreateEntry(_ context.Context, entry *model.Entry) error {
	if s.onCreate != nil {
		s.onCreate(entry)
	}
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, entry)
	return nil
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var entryTime = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	store  *memStore
	mailer *MemoryMailer
	hooks  *hook.Registry
	rules  *rules.Registry
	root   string
	fired  []string
}

func newFixture(t *testing.T, mutate func(*config.Forms), form *model.Form) *fixture {
	t.Helper()

	settings := config.DefaultForms()
	settings.UploadRoot = t.TempDir()
	if mutate != nil {
		mutate(&settings)
	}

	if form == nil {
		form = contactForm()
	}
	fx := &fixture{
		store: &memStore{
			forms: map[string]*model.Form{form.Slug: form},
			fields: map[int64][]model.Field{form.ID: {
				{ID: 1, FormID: form.ID, Label: "Name", Slug: "name", FieldType: fields.Text, Required: true, Visible: true},
				{ID: 2, FormID: form.ID, Label: "Email", Slug: "email", FieldType: fields.Email, Required: true, Visible: true},
				{ID: 3, FormID: form.ID, Label: "Topics", Slug: "topics", FieldType: fields.CheckboxMultiple, Visible: true,
					Choices: `[{"text":"Sales","score":1,"slug":"sales"},{"text":"Support","score":2,"slug":"support"}]`},
				{ID: 4, FormID: form.ID, Label: "Attachment", Slug: "attachment", FieldType: fields.File, Visible: true},
				{ID: 5, FormID: form.ID, Label: "Internal", Slug: "internal", FieldType: fields.Text, Required: true},
			}},
		},
		mailer: &MemoryMailer{},
		hooks:  hook.NewRegistry(silentLogger()),
		rules:  rules.NewRegistry(settings.RulesPath),
		root:   settings.UploadRoot,
	}
	for _, name := range []string{hook.SubmissionInvalid, hook.SubmissionValid} {
		fx.hooks.RegisterFunc(name, "record", "test", func(_ context.Context, _ any) error {
			fx.fired = append(fx.fired, name)
			return nil
		})
	}

	fx.svc = NewService(Options{
		Store:       fx.store,
		Registry:    fields.NewBuilder(settings, nil).Build(),
		Mailer:      fx.mailer,
		Hooks:       fx.hooks,
		Rules:       fx.rules,
		Settings:    settings,
		DefaultFrom: "webmaster@example.com",
		Now:         func() time.Time { return entryTime },
		Logger:      silentLogger(),
	})
	return fx
}

func contactForm() *model.Form {
	return &model.Form{
		ID:          7,
		Title:       "Contact us",
		Slug:        "contact-us",
		Status:      model.FormStatusPublished,
		SendEmail:   true,
		EmailCopies: "staff@example.com, boss@example.com",
		Response:    "Thanks!",
	}
}

func uploads(t *testing.T, field, filename string, content []byte) map[string][]*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	w, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File
}

func validData() url.Values {
	return url.Values{
		"name":   {"Ada"},
		"email":  {"ada@example.com"},
		"topics": {"Sales", "Support"},
	}
}

func TestDetail_Backend(t *testing.T) {
	fx := newFixture(t, nil, nil)

	d, err := fx.svc.Detail(context.Background(), "contact-us", model.Anonymous)
	require.NoError(t, err)

	assert.Equal(t, fields.Backend, d.Strategy)
	require.NotNil(t, d.Bound)
	assert.False(t, d.Bound.IsBound())
	assert.Len(t, d.Bound.Fields(), 4, "invisible fields are left out")
	assert.True(t, d.Bound.IsMultipart())
	assert.Equal(t, []string{"forms/form_detail.html"}, d.TemplateNames())
}

func TestDetail_Frontend(t *testing.T) {
	form := contactForm()
	form.Template = "survey-widgets"
	fx := newFixture(t, nil, form)

	b := fields.NewBuilder(fx.svc.settings, nil)
	require.NoError(t, b.AddTemplate(fields.TemplateConfig{
		Name:     "Survey widgets",
		Strategy: fields.Str("frontend"),
		Fields:   &[]fields.FieldConfig{},
	}))
	fx.svc.registry = b.Build()

	d, err := fx.svc.Detail(context.Background(), "contact-us", model.Anonymous)
	require.NoError(t, err)

	assert.Equal(t, fields.Frontend, d.Strategy)
	assert.Nil(t, d.Bound)
	assert.Contains(t, string(d.JSON), `"titleText": "Name"`)
	assert.Equal(t, []string{"forms/survey-widgets/form_detail.html", "forms/form_detail.html"}, d.TemplateNames())
}

func TestDetail_LoginRequired(t *testing.T) {
	form := contactForm()
	form.LoginRequired = true
	fx := newFixture(t, nil, form)
	ctx := context.Background()

	_, err := fx.svc.Detail(ctx, "contact-us", model.Anonymous)
	assert.ErrorIs(t, err, ErrLoginRequired)

	_, err = fx.svc.Detail(ctx, "contact-us", model.Identity{UserID: 3, Email: "u@example.com"})
	assert.NoError(t, err)

	_, err = fx.svc.Detail(ctx, "missing", model.Anonymous)
	assert.ErrorIs(t, err, errNotFound)
}

func TestSubmit_Invalid(t *testing.T) {
	fx := newFixture(t, nil, nil)

	res, err := fx.svc.Submit(context.Background(), SubmitRequest{
		Slug: "contact-us",
		Data: url.Values{"name": {"Ada"}, "email": {"not-an-address"}, "topics": {"Marketing"}},
	})
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Nil(t, res.Entry)
	assert.Empty(t, fx.store.entries)
	assert.Empty(t, fx.mailer.Messages())
	assert.Equal(t, []string{hook.SubmissionInvalid}, fx.fired)

	errs := res.Bound.Errors()
	assert.Equal(t, []string{"Enter a valid email address."}, errs["email"])
	require.Len(t, errs["topics"], 1)
	assert.Contains(t, errs["topics"][0], "Marketing is not one of the available choices")
	assert.Same(t, res.Bound, res.Detail.Bound, "invalid backend submissions re-render the bound form")
}

func TestSubmit_ValidWithUpload(t *testing.T) {
	fx := newFixture(t, nil, nil)
	content := []byte("%PDF-1.4 quarterly report")

	res, err := fx.svc.Submit(context.Background(), SubmitRequest{
		Slug:  "contact-us",
		Data:  validData(),
		Files: uploads(t, "attachment", "report.pdf", content),
	})
	require.NoError(t, err)
	require.True(t, res.Valid)

	require.Len(t, fx.store.entries, 1)
	entry := fx.store.entries[0]
	assert.Equal(t, entryTime, entry.EntryTime)
	assert.Equal(t, []string{hook.SubmissionValid}, fx.fired)

	values := map[int64]string{}
	for _, fe := range entry.Fields {
		values[fe.FieldID] = fe.Value
	}
	assert.Equal(t, "Ada", values[1])
	assert.Equal(t, "Sales, Support", values[3])
	require.Len(t, entry.Files, 1)
	stored := entry.Files[0]
	assert.Equal(t, values[4], stored.Path)
	assert.True(t, strings.HasPrefix(stored.Path, "contact-us/"))
	assert.True(t, strings.HasSuffix(stored.Path, "-report.pdf"))

	onDisk, err := os.ReadFile(filepath.Join(fx.root, filepath.FromSlash(stored.Path)))
	require.NoError(t, err)
	assert.Equal(t, content, onDisk)

	msgs := fx.mailer.Messages()
	require.Len(t, msgs, 2)

	primary, copies := msgs[0], msgs[1]
	assert.Equal(t, []string{"ada@example.com"}, primary.To)
	assert.Equal(t, "webmaster@example.com", primary.From)
	assert.Equal(t, "Contact us - 2025-06-01 12:30:00", primary.Subject)
	assert.Empty(t, primary.Attachments)
	assert.Contains(t, primary.TextBody, "Topics: Sales, Support")

	assert.Equal(t, []string{"staff@example.com", "boss@example.com"}, copies.To)
	assert.Equal(t, []string{"ada@example.com"}, copies.ReplyTo)
	require.Len(t, copies.Attachments, 1)
	assert.Equal(t, content, copies.Attachments[0].Content)
	assert.Contains(t, copies.TextBody, "Name: Ada")
}

func TestSubmit_AttachmentsReadBeforePersist(t *testing.T) {
	fx := newFixture(t, nil, nil)
	files := uploads(t, "attachment", "notes.txt", []byte("hello"))

	// Once the entry is stored the upload can no longer be read.
	fx.store.onCreate = func(*model.Entry) {
		for _, fh := range files["attachment"] {
			fh.Filename = "gone.txt"
		}
	}

	_, err := fx.svc.Submit(context.Background(), SubmitRequest{Slug: "contact-us", Data: validData(), Files: files})
	require.NoError(t, err)

	msgs := fx.mailer.Messages()
	require.Len(t, msgs, 2)
	require.Len(t, msgs[1].Attachments, 1)
	assert.Equal(t, "notes.txt", msgs[1].Attachments[0].Filename)
	assert.Equal(t, []byte("hello"), msgs[1].Attachments[0].Content)
}

func TestSubmit_Recipients(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*model.Form)
		wantEmails int
		wantTo     []string
	}{
		{
			name:       "configured recipients override the submitted address",
			mutate:     func(f *model.Form) { f.EmailTo = "office@example.com, , hr@example.com"; f.EmailCopies = "" },
			wantEmails: 1,
			wantTo:     []string{"office@example.com", "hr@example.com"},
		},
		{
			name:       "send email off only sends copies",
			mutate:     func(f *model.Form) { f.SendEmail = false },
			wantEmails: 1,
			wantTo:     []string{"staff@example.com", "boss@example.com"},
		},
		{
			name:       "no copies",
			mutate:     func(f *model.Form) { f.EmailCopies = "" },
			wantEmails: 1,
			wantTo:     []string{"ada@example.com"},
		},
		{
			name:       "custom subject and sender",
			mutate:     func(f *model.Form) { f.EmailSubject = "New lead"; f.EmailFrom = "forms@example.com"; f.EmailCopies = "" },
			wantEmails: 1,
			wantTo:     []string{"ada@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := contactForm()
			tt.mutate(form)
			fx := newFixture(t, nil, form)

			_, err := fx.svc.Submit(context.Background(), SubmitRequest{Slug: "contact-us", Data: validData()})
			require.NoError(t, err)

			msgs := fx.mailer.Messages()
			require.Len(t, msgs, tt.wantEmails)
			assert.Equal(t, tt.wantTo, msgs[0].To)
			assert.Equal(t, Subject(form, fx.store.entries[0]), msgs[0].Subject)
		})
	}
}

func TestSubmit_EmailFailurePolicy(t *testing.T) {
	for _, silent := range []bool{true, false} {
		t.Run(map[bool]string{true: "silent", false: "raise"}[silent], func(t *testing.T) {
			fx := newFixture(t, func(f *config.Forms) { f.EmailFailSilently = &silent }, nil)
			fx.mailer.Err = errors.New("smtp down")

			res, err := fx.svc.Submit(context.Background(), SubmitRequest{Slug: "contact-us", Data: validData()})

			require.NotNil(t, res)
			assert.True(t, res.Valid)
			assert.Len(t, fx.store.entries, 1, "the entry is stored before emails are sent")
			assert.Len(t, fx.mailer.Messages(), 2, "both emails are attempted")
			if silent {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, "smtp down")
			}
		})
	}
}

func TestSubmit_Rules(t *testing.T) {
	fx := newFixture(t, func(f *config.Forms) { f.RulesPath = "app.rules" }, nil)

	var got rules.Input
	fx.rules.Register("app.rules.contact-us", rules.Module{Run: func(_ context.Context, in rules.Input) error {
		got = in
		return errors.New("rule failures are logged only")
	}})

	res, err := fx.svc.Submit(context.Background(), SubmitRequest{Slug: "contact-us", Data: validData()})
	require.NoError(t, err)

	assert.Equal(t, "contact-us", got.FormSlug)
	assert.Equal(t, res.Entry.ID, got.EntryID)
	assert.Equal(t, "ada@example.com", got.Values["email"])
	assert.Len(t, fx.mailer.Messages(), 2)
}

func TestSubmit_BrokenRuleModule(t *testing.T) {
	fx := newFixture(t, func(f *config.Forms) { f.RulesPath = "app.rules" }, nil)
	fx.rules.Register("app.rules.contact-us", rules.Module{})

	res, err := fx.svc.Submit(context.Background(), SubmitRequest{Slug: "contact-us", Data: validData()})
	assert.ErrorIs(t, err, rules.ErrMissingRun)
	assert.True(t, res.Valid)
	assert.Len(t, fx.mailer.Messages(), 2, "a broken rule must not hold back the notification emails")
}

func TestSubmit_BrokenRuleAndMailFailure(t *testing.T) {
	fx := newFixture(t, func(f *config.Forms) {
		silent := false
		f.RulesPath = "app.rules"
		f.EmailFailSilently = &silent
	}, nil)
	fx.rules.Register("app.rules.contact-us", rules.Module{})
	fx.mailer.Err = errors.New("smtp down")

	res, err := fx.svc.Submit(context.Background(), SubmitRequest{Slug: "contact-us", Data: validData()})
	require.NotNil(t, res)
	assert.ErrorIs(t, err, rules.ErrMissingRun)
	assert.ErrorContains(t, err, "smtp down")
	assert.Len(t, fx.store.entries, 1)
}

func TestSubmit_HookErrorsDoNotBlock(t *testing.T) {
	fx := newFixture(t, nil, nil)
	fx.hooks.Register(hook.SubmissionValid, hook.Handler{
		Name:     "broken",
		Priority: -1,
		Fn:       func(context.Context, any) error { return errors.New("boom") },
	})

	res, err := fx.svc.Submit(context.Background(), SubmitRequest{Slug: "contact-us", Data: validData()})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Len(t, fx.mailer.Messages(), 2)
}

func TestUploadBasename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"report.pdf", "report.pdf"},
		{`C:\docs\report.pdf`, "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"..", "upload"},
		{"/", "upload"},
		{"dir/sub/photo 1.jpeg", "photo 1.jpeg"},
	}
	for _, tt := range tests {
		if got := uploadBasename(tt.in); got != tt.want {
			t.Errorf("uploadBasename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
