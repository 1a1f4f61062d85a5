// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/ocms-forms/internal/fields"
	"github.com/olegiv/ocms-forms/internal/model"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs single statements against a connection or transaction.
type Queries struct {
	db DBTX
}

// New returns queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const formColumns = `id, site_id, title, slug, intro, button_text, response, template,
	redirect_url, status, publish_date, expiry_date, login_required, send_email,
	email_to, email_from, email_copies, email_subject, email_message, created_at, updated_at`

func scanForm(row interface{ Scan(...any) error }) (model.Form, error) {
	var f model.Form
	err := row.Scan(
		&f.ID, &f.SiteID, &f.Title, &f.Slug, &f.Intro, &f.ButtonText, &f.Response, &f.Template,
		&f.RedirectURL, &f.Status, &f.PublishDate, &f.ExpiryDate, &f.LoginRequired, &f.SendEmail,
		&f.EmailTo, &f.EmailFrom, &f.EmailCopies, &f.EmailSubject, &f.EmailMessage, &f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

const getFormBySlug = `SELECT ` + formColumns + ` FROM forms WHERE slug = ?`

// GetFormBySlug returns the form with the given slug.
func (q *Queries) GetFormBySlug(ctx context.Context, slug string) (model.Form, error) {
	return scanForm(q.db.QueryRowContext(ctx, getFormBySlug, slug))
}

const listForms = `SELECT ` + formColumns + ` FROM forms ORDER BY title`

// ListForms returns every form ordered by title.
func (q *Queries) ListForms(ctx context.Context) ([]model.Form, error) {
	rows, err := q.db.QueryContext(ctx, listForms)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

const countFormsBySlug = `SELECT COUNT(*) FROM forms WHERE slug = ?`

// CountFormsBySlug returns how many forms use slug (0 or 1).
func (q *Queries) CountFormsBySlug(ctx context.Context, slug string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countFormsBySlug, slug).Scan(&n)
	return n, err
}

const createForm = `INSERT INTO forms (
	site_id, title, slug, intro, button_text, response, template, redirect_url, status,
	publish_date, expiry_date, login_required, send_email, email_to, email_from,
	email_copies, email_subject, email_message, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

// CreateForm inserts f and sets its ID.
func (q *Queries) CreateForm(ctx context.Context, f *model.Form) error {
	return q.db.QueryRowContext(ctx, createForm,
		f.SiteID, f.Title, f.Slug, f.Intro, f.ButtonText, f.Response, f.Template, f.RedirectURL, f.Status,
		f.PublishDate, f.ExpiryDate, f.LoginRequired, f.SendEmail, f.EmailTo, f.EmailFrom,
		f.EmailCopies, f.EmailSubject, f.EmailMessage, f.CreatedAt, f.UpdatedAt,
	).Scan(&f.ID)
}

const listFieldsByForm = `SELECT id, form_id, label, slug, field_type, required, visible, choices,
	meta, default_value, placeholder, help_text, sort_order
FROM form_fields WHERE form_id = ? ORDER BY sort_order, id`

// ListFieldsByForm returns a form's fields in display order.
func (q *Queries) ListFieldsByForm(ctx context.Context, formID int64) ([]model.Field, error) {
	rows, err := q.db.QueryContext(ctx, listFieldsByForm, formID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.Field
	for rows.Next() {
		var f model.Field
		var fieldType int64
		if err := rows.Scan(
			&f.ID, &f.FormID, &f.Label, &f.Slug, &fieldType, &f.Required, &f.Visible, &f.Choices,
			&f.Meta, &f.Default, &f.Placeholder, &f.HelpText, &f.SortOrder,
		); err != nil {
			return nil, err
		}
		f.FieldType = fields.ID(fieldType)
		items = append(items, f)
	}
	return items, rows.Err()
}

const countFieldsBySlug = `SELECT COUNT(*) FROM form_fields WHERE form_id = ? AND slug = ?`

// CountFieldsBySlug returns how many fields of a form use slug.
func (q *Queries) CountFieldsBySlug(ctx context.Context, formID int64, slug string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countFieldsBySlug, formID, slug).Scan(&n)
	return n, err
}

const createField = `INSERT INTO form_fields (
	form_id, label, slug, field_type, required, visible, choices, meta,
	default_value, placeholder, help_text, sort_order
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

// CreateField inserts f and sets its ID.
func (q *Queries) CreateField(ctx context.Context, f *model.Field) error {
	return q.db.QueryRowContext(ctx, createField,
		f.FormID, f.Label, f.Slug, int64(f.FieldType), f.Required, f.Visible, f.Choices, f.Meta,
		f.Default, f.Placeholder, f.HelpText, f.SortOrder,
	).Scan(&f.ID)
}

const createEntry = `INSERT INTO form_entries (form_id, entry_time) VALUES (?, ?) RETURNING id`

// CreateEntry inserts the entry row and returns its id.
func (q *Queries) CreateEntry(ctx context.Context, formID int64, entryTime time.Time) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createEntry, formID, entryTime).Scan(&id)
	return id, err
}

const createFieldEntry = `INSERT INTO form_field_entries (entry_id, field_id, value) VALUES (?, ?, ?) RETURNING id`

// CreateFieldEntry stores one field value of an entry.
func (q *Queries) CreateFieldEntry(ctx context.Context, fe *model.FieldEntry) error {
	return q.db.QueryRowContext(ctx, createFieldEntry, fe.EntryID, fe.FieldID, fe.Value).Scan(&fe.ID)
}

const createEntryFile = `INSERT INTO form_entry_files (entry_id, field_id, path, filename, size)
VALUES (?, ?, ?, ?, ?) RETURNING id`

// CreateEntryFile records an upload of an entry.
func (q *Queries) CreateEntryFile(ctx context.Context, ef *model.EntryFile) error {
	return q.db.QueryRowContext(ctx, createEntryFile, ef.EntryID, ef.FieldID, ef.Path, ef.Filename, ef.Size).Scan(&ef.ID)
}

const countEntriesByForm = `SELECT COUNT(*) FROM form_entries WHERE form_id = ?`

// CountEntriesByForm returns how many entries a form has.
func (q *Queries) CountEntriesByForm(ctx context.Context, formID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countEntriesByForm, formID).Scan(&n)
	return n, err
}

const listFieldEntries = `SELECT id, entry_id, field_id, value FROM form_field_entries WHERE entry_id = ? ORDER BY id`

// ListFieldEntries returns the stored values of an entry.
func (q *Queries) ListFieldEntries(ctx context.Context, entryID int64) ([]model.FieldEntry, error) {
	rows, err := q.db.QueryContext(ctx, listFieldEntries, entryID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.FieldEntry
	for rows.Next() {
		var fe model.FieldEntry
		if err := rows.Scan(&fe.ID, &fe.EntryID, &fe.FieldID, &fe.Value); err != nil {
			return nil, err
		}
		items = append(items, fe)
	}
	return items, rows.Err()
}

const listEntryFiles = `SELECT id, entry_id, field_id, path, filename, size FROM form_entry_files WHERE entry_id = ? ORDER BY id`

// ListEntryFiles returns the uploads recorded for an entry.
func (q *Queries) ListEntryFiles(ctx context.Context, entryID int64) ([]model.EntryFile, error) {
	rows, err := q.db.QueryContext(ctx, listEntryFiles, entryID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.EntryFile
	for rows.Next() {
		var ef model.EntryFile
		if err := rows.Scan(&ef.ID, &ef.EntryID, &ef.FieldID, &ef.Path, &ef.Filename, &ef.Size); err != nil {
			return nil, err
		}
		items = append(items, ef)
	}
	return items, rows.Err()
}

// CreateEventParams holds the columns of a new event.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	Metadata  string
	CreatedAt time.Time
}

const createEvent = `INSERT INTO events (level, category, message, user_id, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?) RETURNING id`

// CreateEvent writes an event log entry.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (model.Event, error) {
	e := model.Event{
		Level:     arg.Level,
		Category:  arg.Category,
		Message:   arg.Message,
		UserID:    arg.UserID,
		Metadata:  arg.Metadata,
		CreatedAt: arg.CreatedAt,
	}
	err := q.db.QueryRowContext(ctx, createEvent,
		arg.Level, arg.Category, arg.Message, arg.UserID, arg.Metadata, arg.CreatedAt,
	).Scan(&e.ID)
	return e, err
}

const listEvents = `SELECT id, level, category, message, user_id, metadata, created_at
FROM events ORDER BY created_at DESC, id DESC LIMIT ?`

// ListEvents returns the most recent events.
func (q *Queries) ListEvents(ctx context.Context, limit int64) ([]model.Event, error) {
	rows, err := q.db.QueryContext(ctx, listEvents, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.UserID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const getUserByID = `SELECT id, email, name, role FROM users WHERE id = ?`

// GetUserByID returns the user with the given id.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := q.db.QueryRowContext(ctx, getUserByID, id).Scan(&u.ID, &u.Email, &u.Name, &u.Role)
	return u, err
}

const createUser = `INSERT INTO users (email, name, role) VALUES (?, ?, ?) RETURNING id`

// CreateUser inserts u and sets its ID.
func (q *Queries) CreateUser(ctx context.Context, u *model.User) error {
	return q.db.QueryRowContext(ctx, createUser, u.Email, u.Name, u.Role).Scan(&u.ID)
}
