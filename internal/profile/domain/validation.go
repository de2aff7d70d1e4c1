package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DateLayout = "2006-01-02"

	MaxNameLength       = 150
	MaxNationalIDLength = 25
)

var zipPattern = regexp.MustCompile(`^[0-9]{6}$`)

type FieldError struct {
	Field string
	Code  string
}

// ValidationError lists every offending field at once.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Code))
	}
	return "invalid profile: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Add(field, code string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code})
}

// Err returns nil when nothing was added.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func ValidateFields(f Fields, v *ValidationError) {
	requiredText(v, "first_name", f.FirstName, MaxNameLength)
	requiredText(v, "last_name", f.LastName, MaxNameLength)
	optionalText(v, "display_name", f.DisplayName, MaxNameLength)
	optionalText(v, "street", f.Street, MaxNameLength)
	optionalText(v, "city", f.City, MaxNameLength)
	optionalText(v, "state", f.State, MaxNameLength)
	validateZip(v, f.ZipCode)
	validateDate(v, f.DateOfBirth)
}

func ValidateNationalID(value string, v *ValidationError) {
	requiredText(v, "national_id", value, MaxNationalIDLength)
}

func ValidateUpdate(req UpdateProfileRequest, v *ValidationError) {
	if req.FirstName != nil {
		requiredText(v, "first_name", *req.FirstName, MaxNameLength)
	}
	if req.LastName != nil {
		requiredText(v, "last_name", *req.LastName, MaxNameLength)
	}
	optionalText(v, "display_name", req.DisplayName, MaxNameLength)
	optionalText(v, "street", req.Street, MaxNameLength)
	optionalText(v, "city", req.City, MaxNameLength)
	optionalText(v, "state", req.State, MaxNameLength)
	validateZip(v, req.ZipCode)
	validateDate(v, req.DateOfBirth)
}

// ParseDate accepts YYYY-MM-DD only.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(value))
}

// NormalizeOptional trims the value and maps blank strings to nil.
func NormalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func requiredText(v *ValidationError, field, value string, max int) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		v.Add(field, "required")
	case utf8.RuneCountInString(value) > max:
		v.Add(field, "too_long")
	}
}

func optionalText(v *ValidationError, field string, value *string, max int) {
	if value == nil {
		return
	}
	if utf8.RuneCountInString(strings.TrimSpace(*value)) > max {
		v.Add(field, "too_long")
	}
}

func validateZip(v *ValidationError, value *string) {
	zip := NormalizeOptional(value)
	if zip == nil {
		return
	}
	if !zipPattern.MatchString(*zip) {
		v.Add("zip_code", "invalid_format")
	}
}

func validateDate(v *ValidationError, value *string) {
	date := NormalizeOptional(value)
	if date == nil {
		return
	}
	if _, err := ParseDate(*date); err != nil {
		v.Add("date_of_birth", "invalid_format")
	}
}
