package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for field %q: %s", e.Field, e.Message)
}

// Validator accumulates configuration validation errors so a constructor can
// report everything wrong at once instead of failing field by field.
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// RequireNonEmpty validates that a string field is not empty.
func (v *Validator) RequireNonEmpty(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errors = append(v.errors, ValidationError{Field: field, Message: "value cannot be empty"})
	}
	return v
}

// RequirePositive validates that an integer field is greater than 0.
func (v *Validator) RequirePositive(field string, value int) *Validator {
	if value <= 0 {
		v.errors = append(v.errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be positive, got %d", value),
		})
	}
	return v
}

// ValidateRange validates that an integer field is within [min, max].
func (v *Validator) ValidateRange(field string, value, min, max int) *Validator {
	if value < min || value > max {
		v.errors = append(v.errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be between %d and %d, got %d", min, max, value),
		})
	}
	return v
}

// ValidateFloatRange validates that a float field is within [min, max].
func (v *Validator) ValidateFloatRange(field string, value, min, max float64) *Validator {
	if value < min || value > max {
		v.errors = append(v.errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be between %.2f and %.2f, got %.2f", min, max, value),
		})
	}
	return v
}

// ValidateOneOf validates that a string value is one of the allowed options.
func (v *Validator) ValidateOneOf(field string, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if a == value {
			return v
		}
	}
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be one of %v, got %q", allowed, value),
	})
	return v
}

// HasErrors reports whether any validation failed.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Error returns a combined error or nil when validation passed.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:")
	for _, e := range v.errors {
		sb.WriteString("\n  - ")
		sb.WriteString(e.Error())
	}
	return fmt.Errorf("%s", sb.String())
}
