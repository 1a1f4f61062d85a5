// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package fields

import (
	"errors"
	"mime/multipart"
	"testing"
	"time"
)

func TestValueClasses(t *testing.T) {
	colours := []Choice{{"text": "Red"}, {"text": "Blue"}}

	tests := []struct {
		name    string
		vc      ValueClass
		in      Input
		want    any
		wantErr bool
	}{
		{"char", CharField{}, Input{Values: []string{" hi "}}, "hi", false},
		{"char required", CharField{}, Input{Required: true}, nil, true},
		{"char optional empty", CharField{}, Input{}, "", false},
		{"char too long", CharField{}, Input{Values: []string{"abcdef"}, MaxLength: 5}, nil, true},
		{"char runes", CharField{}, Input{Values: []string{"ééééé"}, MaxLength: 5}, "ééééé", false},
		{"email", EmailField{}, Input{Values: []string{"a@example.com"}}, "a@example.com", false},
		{"email display name", EmailField{}, Input{Values: []string{"A <a@example.com>"}}, nil, true},
		{"email invalid", EmailField{}, Input{Values: []string{"nope"}}, nil, true},
		{"url scheme added", URLField{}, Input{Values: []string{"example.com/x"}}, "http://example.com/x", false},
		{"url bad scheme", URLField{}, Input{Values: []string{"ftp://example.com"}}, nil, true},
		{"bool checked", BooleanField{}, Input{Values: []string{"on"}}, true, false},
		{"bool unchecked", BooleanField{}, Input{}, false, false},
		{"bool required unchecked", BooleanField{}, Input{Required: true}, nil, true},
		{"choice", ChoiceField{}, Input{Values: []string{"Red"}, Choices: colours}, "Red", false},
		{"choice unknown", ChoiceField{}, Input{Values: []string{"Green"}, Choices: colours}, nil, true},
		{"multi", MultipleChoiceField{}, Input{Values: []string{"Red", "Blue"}, Choices: colours}, []string{"Red", "Blue"}, false},
		{"multi unknown", MultipleChoiceField{}, Input{Values: []string{"Red", "Green"}, Choices: colours}, nil, true},
		{"multi required", MultipleChoiceField{}, Input{Required: true, Choices: colours}, nil, true},
		{"float", FloatField{}, Input{Values: []string{"1.5"}}, 1.5, false},
		{"float not number", FloatField{}, Input{Values: []string{"x"}}, nil, true},
		{"float below min", FloatField{}, Input{Values: []string{"0"}, Meta: map[string]any{"min": 1}}, nil, true},
		{"float nan within bounds", FloatField{}, Input{Values: []string{"NaN"}, Meta: map[string]any{"min": 1, "max": 10}}, nil, true},
		{"float infinity", FloatField{}, Input{Values: []string{"Inf"}}, nil, true},
		{"float negative infinity", FloatField{}, Input{Values: []string{"-Infinity"}}, nil, true},
		{"float above max", FloatField{}, Input{Values: []string{"10"}, Meta: map[string]any{"max": "5"}}, nil, true},
		{"integer", IntegerField{}, Input{Values: []string{"42"}}, int64(42), false},
		{"integer fraction", IntegerField{}, Input{Values: []string{"4.2"}}, nil, true},
		{"date", DateField{}, Input{Values: []string{"2024-03-01"}}, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"date invalid", DateField{}, Input{Values: []string{"yesterday"}}, nil, true},
		{"datetime", DateTimeField{}, Input{Values: []string{"2024-03-01T10:30"}}, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.vc.Clean(tt.in)
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("Clean() error = %v, want *ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Clean() unexpected error: %v", err)
			}
			if FormatValue(got) != FormatValue(tt.want) {
				t.Errorf("Clean() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestFileField(t *testing.T) {
	if _, err := (FileField{}).Clean(Input{Required: true}); err == nil {
		t.Error("required file without upload should fail")
	}
	v, err := FileField{}.Clean(Input{})
	if err != nil || v != nil {
		t.Errorf("optional file without upload = %v, %v", v, err)
	}
	empty := &multipart.FileHeader{Filename: "a.txt", Size: 0}
	if _, err := (FileField{}).Clean(Input{Files: []*multipart.FileHeader{empty}}); err == nil {
		t.Error("empty file should fail")
	}
	fh := &multipart.FileHeader{Filename: "a.txt", Size: 3}
	v, err = FileField{}.Clean(Input{Files: []*multipart.FileHeader{fh}})
	if err != nil || v != fh {
		t.Errorf("Clean() = %v, %v", v, err)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{[]string{"a", " b"}, "a, b"},
		{true, "True"},
		{2.5, "2.5"},
		{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "2024-01-02"},
		{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "2024-01-02 03:04:05"},
		{&multipart.FileHeader{Filename: "f.pdf"}, "f.pdf"},
		{int64(7), "7"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
