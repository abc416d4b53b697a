package validation

import (
	"testing"

	"github.com/google/uuid"

	"github.com/skillsenselab/dreamflow/errors"
)

func TestValidateStructTags(t *testing.T) {
	type def struct {
		Name    string `yaml:"name" validate:"required"`
		Backend string `yaml:"backend" validate:"omitempty,oneof=memory kafka"`
	}

	if err := Validate(&def{Name: "user_prompt", Backend: "memory"}); err != nil {
		t.Errorf("valid struct rejected: %v", err)
	}

	err := Validate(&def{Backend: "s3"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeValidation {
		t.Errorf("got %v, want coded validation error", err)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Errorf("expected 2 field errors, got %v", appErr.Details["fields"])
	}
	// Field names come from the yaml tag.
	if fields[0].Field != "name" {
		t.Errorf("field name %q", fields[0].Field)
	}
}

func TestValidatorCollectsErrors(t *testing.T) {
	v := New().
		Required("prompt", "").
		MaxLength("prompt", "abcdef", 3).
		Range("max_tokens", 50000, 1, 32768).
		OneOf("backend", "s3", []string{"memory", "kafka"}).
		Custom(false, "timeout", "must be positive")

	if !v.HasErrors() {
		t.Fatal("expected errors")
	}
	if got := len(v.Errors()); got != 5 {
		t.Errorf("expected 5 errors, got %d", got)
	}
	if err := v.Validate(); err == nil || err.Code != errors.ErrCodeValidation {
		t.Errorf("unexpected error %v", err)
	}
}

func TestValidatorPasses(t *testing.T) {
	v := New().
		Required("prompt", "write hello world").
		OneOf("backend", "kafka", []string{"memory", "kafka"}).
		OneOf("mode", "", []string{"a", "b"})

	if v.HasErrors() {
		t.Errorf("unexpected errors: %v", v.Errors())
	}
	if err := v.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateUUID(t *testing.T) {
	id := uuid.New()
	got, err := ValidateUUID("correlation_id", id.String())
	if err != nil || got != id {
		t.Errorf("round trip failed: %v %v", got, err)
	}

	if _, err := ValidateUUID("correlation_id", ""); err == nil {
		t.Error("empty id accepted")
	}
	if _, err := ValidateUUID("correlation_id", "not-a-uuid"); err == nil {
		t.Error("malformed id accepted")
	}
}
