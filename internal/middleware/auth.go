// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for identity loading, CSRF,
// rate limiting and response hardening.
package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/ocms-forms/internal/model"
	"github.com/olegiv/ocms-forms/internal/session"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyIdentity holds the model.Identity of the request.
const ContextKeyIdentity ContextKey = "identity"

// UserLookup loads session users.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (model.User, error)
}

// LoadIdentity resolves the session user into a model.Identity on the
// request context. Requests without a session user, or whose user no
// longer exists, continue as anonymous.
func LoadIdentity(sm *scs.SessionManager, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := session.UserID(r.Context(), sm)
			if userID == 0 {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					sm.Remove(r.Context(), session.KeyUserID)
				} else {
					slog.Error("loading session user failed", "user_id", userID, "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithIdentity(r.Context(), model.IdentityOf(&user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, id)
}

// Identity returns the identity of the request, or model.Anonymous.
func Identity(r *http.Request) model.Identity {
	if id, ok := r.Context().Value(ContextKeyIdentity).(model.Identity); ok {
		return id
	}
	return model.Anonymous
}

// LoginURL appends the escaped next path to loginURL.
func LoginURL(loginURL, next string) string {
	sep := "?"
	if u, err := url.Parse(loginURL); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return loginURL + sep + "next=" + url.QueryEscape(next)
}

// RedirectToLogin sends the client to loginURL, returning to the current
// request path afterwards.
func RedirectToLogin(w http.ResponseWriter, r *http.Request, loginURL string) {
	http.Redirect(w, r, LoginURL(loginURL, r.URL.RequestURI()), http.StatusFound)
}
