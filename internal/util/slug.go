// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides general-purpose helpers: slug generation with
// transliteration, uniqueness suffixing, delimited list parsing and safe
// upload paths.
package util

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

var (
	// nonAlnum matches every run of characters that cannot appear in a slug
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify converts a string to a URL-friendly slug.
// Unicode text is first transliterated to its closest ASCII representation
// ("Über München" -> "Uber Munchen", "日本語" -> "Ri Ben Yu"), then lowercased
// with every non-alphanumeric run collapsed into a single hyphen.
func Slugify(s string) string {
	// Fold compatibility forms (ligatures, full-width letters) before transliterating
	result := unidecode.Unidecode(norm.NFKC.String(s))

	result = strings.ToLower(result)
	result = nonAlnum.ReplaceAllString(result, "-")

	return strings.Trim(result, "-")
}

// UniqueSlug returns slug, or slug with "-1", "-2", ... appended, choosing
// the first candidate for which exists reports false.
func UniqueSlug(exists func(candidate string) bool, slug string) string {
	candidate := slug
	for i := 1; exists(candidate); i++ {
		candidate = slug + "-" + strconv.Itoa(i)
	}
	return candidate
}

// IsValidSlug checks if a string is a valid slug format.
func IsValidSlug(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return false
		}
	}

	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}

	return !strings.Contains(s, "--")
}
