// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// User roles
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleMember = "member"
)

// User is an account known to the session layer. Accounts are managed
// elsewhere; this service only reads them.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// IsStaff returns true if the user may see unpublished forms.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleEditor
}

// Identity is who is making a request.
type Identity struct {
	UserID int64
	Email  string
	Staff  bool
}

// Anonymous is the identity of a request without a session user.
var Anonymous = Identity{}

// Authenticated returns true if a user is logged in.
func (i Identity) Authenticated() bool {
	return i.UserID != 0
}

// IdentityOf returns the identity of u, or Anonymous for nil.
func IdentityOf(u *User) Identity {
	if u == nil {
		return Anonymous
	}
	return Identity{UserID: u.ID, Email: u.Email, Staff: u.IsStaff()}
}
