// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"path/filepath"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple filename", input: "cv.pdf", want: "cv.pdf"},
		{name: "path traversal attempt", input: "../../../etc/passwd", want: "passwd"},
		{name: "windows client path", input: `C:\Users\me\cv.pdf`, want: "cv.pdf"},
		{name: "empty", input: "", wantErr: true},
		{name: "dot dot", input: "..", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFilename(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("SanitizeFilename(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeFilename(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSafeJoinPath(t *testing.T) {
	base := t.TempDir()

	got, err := SafeJoinPath(base, "contact", "file.txt")
	if err != nil {
		t.Fatalf("SafeJoinPath error: %v", err)
	}
	if want := filepath.Join(base, "contact", "file.txt"); got != want {
		t.Errorf("SafeJoinPath = %q, want %q", got, want)
	}

	if _, err := SafeJoinPath(base, "..", "escape.txt"); err == nil {
		t.Error("SafeJoinPath should reject traversal")
	}
}
