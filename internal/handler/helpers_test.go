package handler

import (
	"context"
	"io/fs"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-forms/internal/config"
	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/forms"
	"github.com/olegiv/ocms-forms/internal/middleware"
	"github.com/olegiv/ocms-forms/internal/model"
	"github.com/olegiv/ocms-forms/internal/render"
	"github.com/olegiv/ocms-forms/internal/store"
	"github.com/olegiv/ocms-forms/internal/testutil"
	"github.com/olegiv/ocms-forms/web"
)

const testLoginURL = "/accounts/login/"

// testApp is a router over a seeded database.
type testApp struct {
	router   http.Handler
	store    *store.FormStore
	registry *fields.Registry
	mailer   *forms.MemoryMailer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	settings := config.DefaultForms()
	settings.UploadRoot = t.TempDir()

	b := fields.NewBuilder(settings, nil)
	frontend, name, typ, widget, id := "frontend", "Rating", "", "StarRating", 100
	if err := b.AddTemplate(fields.TemplateConfig{
		Name:     "React",
		Strategy: &frontend,
		Fields:   &[]fields.FieldConfig{{FieldID: &id, Name: &name, Type: &typ, Widget: &widget}},
	}); err != nil {
		t.Fatalf("AddTemplate: %v", err)
	}
	reg := b.Build()

	db := testutil.TestDB(t)
	formStore := store.NewFormStore(db, settings)
	if err := store.Seed(context.Background(), formStore, reg); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	renderer := newTestRenderer(t)
	mailer := &forms.MemoryMailer{}
	svc := forms.NewService(forms.Options{
		Store:       formStore,
		Registry:    reg,
		Mailer:      mailer,
		Settings:    settings,
		DefaultFrom: "forms@example.com",
		Logger:      testutil.TestLoggerSilent(),
	})
	h := NewFormsHandler(svc, renderer, testLoginURL, testutil.TestLoggerSilent())

	r := chi.NewRouter()
	r.Get("/forms/{slug}/", h.Detail)
	r.Post("/forms/{slug}/", h.Submit)
	r.Get("/forms/{slug}/sent/", h.Sent)

	return &testApp{router: r, store: formStore, registry: reg, mailer: mailer}
}

func newTestRenderer(t *testing.T) *render.Renderer {
	t.Helper()

	sub, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}
	renderer, err := render.New(render.Config{TemplatesFS: sub, Pages: "forms"})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	return renderer
}

// createForm inserts a published form with a single required text field.
func (a *testApp) createForm(t *testing.T, f model.Form) *model.Form {
	t.Helper()

	ctx := context.Background()
	f.Status = model.FormStatusPublished
	f.PublishDate = time.Now().Add(-time.Hour)
	if err := a.store.CreateForm(ctx, &f); err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	field := model.Field{FormID: f.ID, Label: "Name", FieldType: fields.Text, Required: true, Visible: true}
	if err := a.store.CreateField(ctx, a.registry, &field); err != nil {
		t.Fatalf("CreateField: %v", err)
	}
	return &f
}

// asUser returns r carrying an authenticated identity.
func asUser(r *http.Request, staff bool) *http.Request {
	id := model.Identity{UserID: 1, Email: "ada@example.com", Staff: staff}
	return r.WithContext(middleware.WithIdentity(r.Context(), id))
}

func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status = %d; want %d", got, want)
	}
}
