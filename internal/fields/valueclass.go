// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package fields

import (
	"fmt"
	"math"
	"mime/multipart"
	"net/mail"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Input is everything a value class needs to clean one field of a submission.
type Input struct {
	Values    []string
	Files     []*multipart.FileHeader
	Required  bool
	Choices   []Choice
	Meta      map[string]any
	MaxLength int
}

func (in Input) first() string {
	if len(in.Values) == 0 {
		return ""
	}
	return strings.TrimSpace(in.Values[0])
}

// ValueClass validates and coerces the submitted value of a field.
// Clean returns a *ValidationError for bad input.
type ValueClass interface {
	Name() string
	Clean(in Input) (any, error)
}

// ChoiceClass is implemented by value classes whose values come from the
// field's choices.
type ChoiceClass interface {
	ValueClass
	Multiple() bool
}

const msgRequired = "This field is required."

// CharField accepts free text up to MaxLength characters.
type CharField struct{}

func (CharField) Name() string { return "CharField" }

func (CharField) Clean(in Input) (any, error) {
	v := in.first()
	if v == "" {
		if in.Required {
			return nil, invalid(msgRequired)
		}
		return "", nil
	}
	if n := utf8.RuneCountInString(v); in.MaxLength > 0 && n > in.MaxLength {
		return nil, invalid("Ensure this value has at most %d characters (it has %d).", in.MaxLength, n)
	}
	return v, nil
}

// EmailField accepts a single bare email address.
type EmailField struct{}

func (EmailField) Name() string { return "EmailField" }

func (EmailField) Clean(in Input) (any, error) {
	v, err := CharField{}.Clean(in)
	if err != nil || v == "" {
		return v, err
	}
	s := v.(string)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return nil, invalid("Enter a valid email address.")
	}
	return s, nil
}

// URLField accepts http(s) URLs, assuming http:// when no scheme is given.
type URLField struct{}

func (URLField) Name() string { return "URLField" }

func (URLField) Clean(in Input) (any, error) {
	v, err := CharField{}.Clean(in)
	if err != nil || v == "" {
		return v, err
	}
	s := v.(string)
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid("Enter a valid URL.")
	}
	return u.String(), nil
}

// BooleanField is a single checkbox. A required boolean must be checked.
type BooleanField struct{}

func (BooleanField) Name() string { return "BooleanField" }

func (BooleanField) Clean(in Input) (any, error) {
	var checked bool
	switch strings.ToLower(in.first()) {
	case "", "0", "false", "off", "no":
	default:
		checked = true
	}
	if in.Required && !checked {
		return nil, invalid(msgRequired)
	}
	return checked, nil
}

// ChoiceField accepts exactly one of the field's choices, matched on text.
type ChoiceField struct{}

func (ChoiceField) Name() string   { return "ChoiceField" }
func (ChoiceField) Multiple() bool { return false }

func (ChoiceField) Clean(in Input) (any, error) {
	v := in.first()
	if v == "" {
		if in.Required {
			return nil, invalid(msgRequired)
		}
		return "", nil
	}
	if !hasChoice(in.Choices, v) {
		return nil, invalid("Select a valid choice. %s is not one of the available choices.", v)
	}
	return v, nil
}

// MultipleChoiceField accepts any subset of the field's choices.
type MultipleChoiceField struct{}

func (MultipleChoiceField) Name() string   { return "MultipleChoiceField" }
func (MultipleChoiceField) Multiple() bool { return true }

func (MultipleChoiceField) Clean(in Input) (any, error) {
	selected := make([]string, 0, len(in.Values))
	for _, v := range in.Values {
		if v = strings.TrimSpace(v); v != "" {
			selected = append(selected, v)
		}
	}
	if len(selected) == 0 {
		if in.Required {
			return nil, invalid(msgRequired)
		}
		return []string{}, nil
	}
	for _, v := range selected {
		if !hasChoice(in.Choices, v) {
			return nil, invalid("Select a valid choice. %s is not one of the available choices.", v)
		}
	}
	return selected, nil
}

func hasChoice(choices []Choice, v string) bool {
	return slices.ContainsFunc(choices, func(c Choice) bool { return c.Text() == v })
}

// FileField accepts one uploaded file.
type FileField struct{}

func (FileField) Name() string { return "FileField" }

func (FileField) Clean(in Input) (any, error) {
	if len(in.Files) == 0 || in.Files[0] == nil || in.Files[0].Filename == "" {
		if in.Required {
			return nil, invalid(msgRequired)
		}
		return nil, nil
	}
	fh := in.Files[0]
	if fh.Size == 0 {
		return nil, invalid("The submitted file is empty.")
	}
	if n := utf8.RuneCountInString(fh.Filename); in.MaxLength > 0 && n > in.MaxLength {
		return nil, invalid("Ensure this filename has at most %d characters (it has %d).", in.MaxLength, n)
	}
	return fh, nil
}

var (
	dateLayouts     = []string{"2006-01-02", "01/02/2006", "01/02/06"}
	dateTimeLayouts = []string{
		"2006-01-02T15:04",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		time.RFC3339,
		"2006-01-02",
	}
)

// DateField accepts a calendar date.
type DateField struct{}

func (DateField) Name() string { return "DateField" }

func (DateField) Clean(in Input) (any, error) {
	return parseTime(in, dateLayouts, "Enter a valid date.")
}

// DateTimeField accepts a date with a time of day.
type DateTimeField struct{}

func (DateTimeField) Name() string { return "DateTimeField" }

func (DateTimeField) Clean(in Input) (any, error) {
	return parseTime(in, dateTimeLayouts, "Enter a valid date/time.")
}

func parseTime(in Input, layouts []string, msg string) (any, error) {
	v := in.first()
	if v == "" {
		if in.Required {
			return nil, invalid(msgRequired)
		}
		return nil, nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return nil, invalid("%s", msg)
}

// FloatField accepts a number, honouring optional "min" and "max" metadata.
type FloatField struct{}

func (FloatField) Name() string { return "FloatField" }

func (FloatField) Clean(in Input) (any, error) {
	v := in.first()
	if v == "" {
		if in.Required {
			return nil, invalid(msgRequired)
		}
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, invalid("Enter a number.")
	}
	if err := checkBounds(f, in.Meta); err != nil {
		return nil, err
	}
	return f, nil
}

// IntegerField accepts a whole number, honouring optional "min" and "max" metadata.
type IntegerField struct{}

func (IntegerField) Name() string { return "IntegerField" }

func (IntegerField) Clean(in Input) (any, error) {
	v := in.first()
	if v == "" {
		if in.Required {
			return nil, invalid(msgRequired)
		}
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, invalid("Enter a whole number.")
	}
	if err := checkBounds(float64(n), in.Meta); err != nil {
		return nil, err
	}
	return n, nil
}

func checkBounds(f float64, meta map[string]any) error {
	if lo, ok := metaNumber(meta, "min"); ok && f < lo {
		return invalid("Ensure this value is greater than or equal to %s.", formatNumber(lo))
	}
	if hi, ok := metaNumber(meta, "max"); ok && f > hi {
		return invalid("Ensure this value is less than or equal to %s.", formatNumber(hi))
	}
	return nil
}

func metaNumber(meta map[string]any, key string) (float64, bool) {
	switch v := meta[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatValue renders a cleaned value for display, joining lists with ", ".
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		trimmed := make([]string, len(val))
		for i, s := range val {
			trimmed[i] = strings.TrimSpace(s)
		}
		return strings.Join(trimmed, ", ")
	case bool:
		if val {
			return "True"
		}
		return "False"
	case float64:
		return formatNumber(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case *multipart.FileHeader:
		return val.Filename
	default:
		return fmt.Sprint(val)
	}
}
