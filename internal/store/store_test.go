package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/olegiv/ocms-forms/internal/config"
	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/model"
)

// testDB creates a migrated database in a temporary directory.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func testStore(t *testing.T, mutate func(*config.Forms)) (*FormStore, *fields.Registry) {
	t.Helper()
	settings := config.DefaultForms()
	if mutate != nil {
		mutate(&settings)
	}
	return NewFormStore(testDB(t), settings), fields.NewBuilder(settings, nil).Build()
}

func TestCreateForm_UniqueSlugs(t *testing.T) {
	s, _ := testStore(t, nil)
	ctx := context.Background()

	var slugs []string
	for range 3 {
		f := &model.Form{Title: "Contact Us!"}
		if err := s.CreateForm(ctx, f); err != nil {
			t.Fatalf("CreateForm: %v", err)
		}
		slugs = append(slugs, f.Slug)
	}

	want := []string{"contact-us", "contact-us-1", "contact-us-2"}
	for i := range want {
		if slugs[i] != want[i] {
			t.Errorf("slug[%d] = %q, want %q", i, slugs[i], want[i])
		}
	}
}

func TestCreateForm_EditableSlugs(t *testing.T) {
	s, _ := testStore(t, func(f *config.Forms) { f.EditableSlugs = true })
	ctx := context.Background()

	f := &model.Form{Title: "Survey", Slug: "my-survey"}
	if err := s.CreateForm(ctx, f); err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	if f.Slug != "my-survey" {
		t.Errorf("Slug = %q, want %q", f.Slug, "my-survey")
	}

	err := s.CreateForm(ctx, &model.Form{Title: "Other", Slug: "my-survey"})
	if !errors.Is(err, ErrDuplicateSlug) {
		t.Errorf("duplicate editable slug error = %v", err)
	}
}

func TestPublished(t *testing.T) {
	s, _ := testStore(t, nil)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	forms := map[string]*model.Form{
		"live":    {Title: "Live", Status: model.FormStatusPublished, PublishDate: now.Add(-time.Hour)},
		"draft":   {Title: "Draft", Status: model.FormStatusDraft, PublishDate: now.Add(-time.Hour)},
		"future":  {Title: "Future", Status: model.FormStatusPublished, PublishDate: now.Add(time.Hour)},
		"expired": {Title: "Expired", Status: model.FormStatusPublished, PublishDate: now.Add(-2 * time.Hour), ExpiryDate: sql.NullTime{Time: now.Add(-time.Hour), Valid: true}},
	}
	for _, f := range forms {
		if err := s.CreateForm(ctx, f); err != nil {
			t.Fatalf("CreateForm: %v", err)
		}
	}

	staff := model.Identity{UserID: 1, Staff: true}
	for name, f := range forms {
		_, err := s.Published(ctx, model.Anonymous, f.Slug)
		if name == "live" && err != nil {
			t.Errorf("anonymous should see %s: %v", name, err)
		}
		if name != "live" && !errors.Is(err, ErrNotFound) {
			t.Errorf("anonymous should not see %s, got %v", name, err)
		}
		if _, err := s.Published(ctx, staff, f.Slug); err != nil {
			t.Errorf("staff should see %s: %v", name, err)
		}
	}

	if _, err := s.Published(ctx, staff, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing slug error = %v", err)
	}
}

func TestPublished_Sites(t *testing.T) {
	s, _ := testStore(t, func(f *config.Forms) { f.UseSites = true; f.SiteID = 2 })
	ctx := context.Background()

	other := &model.Form{Title: "Other site", SiteID: 1, Status: model.FormStatusPublished, PublishDate: time.Now().Add(-time.Hour)}
	mine := &model.Form{Title: "This site", Status: model.FormStatusPublished, PublishDate: time.Now().Add(-time.Hour)}
	for _, f := range []*model.Form{other, mine} {
		if err := s.CreateForm(ctx, f); err != nil {
			t.Fatalf("CreateForm: %v", err)
		}
	}

	if _, err := s.Published(ctx, model.Anonymous, other.Slug); !errors.Is(err, ErrNotFound) {
		t.Errorf("form of another site should be hidden, got %v", err)
	}
	if _, err := s.Published(ctx, model.Anonymous, mine.Slug); err != nil {
		t.Errorf("form of this site should be visible: %v", err)
	}
}

func TestCreateField(t *testing.T) {
	s, reg := testStore(t, nil)
	ctx := context.Background()

	form := &model.Form{Title: "Fields"}
	if err := s.CreateForm(ctx, form); err != nil {
		t.Fatalf("CreateForm: %v", err)
	}

	for i, label := range []string{"Your name", "Your name"} {
		f := &model.Field{FormID: form.ID, Label: label, FieldType: fields.Text, SortOrder: i}
		if err := s.CreateField(ctx, reg, f); err != nil {
			t.Fatalf("CreateField: %v", err)
		}
	}

	bad := &model.Field{FormID: form.ID, Label: "Colour", FieldType: fields.Select, Choices: `[{"text":"Red"}]`}
	if err := s.CreateField(ctx, reg, bad); !errors.Is(err, fields.ErrMissingKey) {
		t.Errorf("choice without required keys error = %v", err)
	}

	dup := &model.Field{FormID: form.ID, Label: "Again", Slug: "your-name", FieldType: fields.Text}
	if err := s.CreateField(ctx, reg, dup); !errors.Is(err, ErrDuplicateSlug) {
		t.Errorf("duplicate field slug error = %v", err)
	}

	got, err := s.Fields(ctx, form.ID)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if len(got) != 2 || got[0].Slug != "your-name" || got[1].Slug != "your-name-1" {
		t.Errorf("Fields() = %+v", got)
	}
}

func TestCreateEntry(t *testing.T) {
	s, reg := testStore(t, nil)
	ctx := context.Background()

	form := &model.Form{Title: "Entries"}
	if err := s.CreateForm(ctx, form); err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	field := &model.Field{FormID: form.ID, Label: "Name", FieldType: fields.Text}
	if err := s.CreateField(ctx, reg, field); err != nil {
		t.Fatalf("CreateField: %v", err)
	}

	entry := &model.Entry{
		FormID:    form.ID,
		EntryTime: time.Now().UTC(),
		Fields:    []model.FieldEntry{{FieldID: field.ID, Value: "Ada"}},
		Files:     []model.EntryFile{{FieldID: field.ID, Path: "entries/a.txt", Filename: "a.txt", Size: 3}},
	}
	if err := s.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if entry.ID == 0 || entry.Fields[0].EntryID != entry.ID || entry.Files[0].ID == 0 {
		t.Errorf("ids not set: %+v", entry)
	}

	q := s.Queries()
	n, err := q.CountEntriesByForm(ctx, form.ID)
	if err != nil || n != 1 {
		t.Errorf("CountEntriesByForm = %d, %v", n, err)
	}
	values, err := q.ListFieldEntries(ctx, entry.ID)
	if err != nil || len(values) != 1 || values[0].Value != "Ada" {
		t.Errorf("ListFieldEntries = %+v, %v", values, err)
	}
	files, err := q.ListEntryFiles(ctx, entry.ID)
	if err != nil || len(files) != 1 || files[0].Filename != "a.txt" {
		t.Errorf("ListEntryFiles = %+v, %v", files, err)
	}
}

func TestSeed(t *testing.T) {
	s, reg := testStore(t, nil)
	ctx := context.Background()

	for range 2 {
		if err := Seed(ctx, s, reg); err != nil {
			t.Fatalf("Seed: %v", err)
		}
	}

	form, err := s.Published(ctx, model.Anonymous, DemoFormSlug)
	if err != nil {
		t.Fatalf("demo form not published: %v", err)
	}
	got, err := s.Fields(ctx, form.ID)
	if err != nil || len(got) != 6 {
		t.Errorf("demo fields = %d, %v", len(got), err)
	}
}

func TestEvents(t *testing.T) {
	db := testDB(t)
	q := New(db)
	ctx := context.Background()

	for _, msg := range []string{"first", "second"} {
		if _, err := q.CreateEvent(ctx, CreateEventParams{
			Level: model.EventLevelWarning, Category: model.EventCategoryEmail,
			Message: msg, Metadata: "{}", CreatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}

	events, err := q.ListEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 || events[0].Message != "second" {
		t.Errorf("ListEvents() = %+v", events)
	}
}

func TestGetUserByID(t *testing.T) {
	q := New(testDB(t))
	ctx := context.Background()

	u := &model.User{Email: "editor@example.com", Name: "Ed", Role: model.RoleEditor}
	if err := q.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got, err := q.GetUserByID(ctx, u.ID)
	if err != nil || got.Email != u.Email || !got.IsStaff() {
		t.Errorf("GetUserByID = %+v, %v", got, err)
	}
	if _, err := q.GetUserByID(ctx, 999); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing user error = %v", err)
	}
}
