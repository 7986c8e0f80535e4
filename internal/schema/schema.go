// Package schema turns raw completion text into validated records.
//
// The repair step is intentionally narrow: it strips Markdown code fences and
// closes a single top-level array or object that was cut off by an output
// length limit. Anything that needs more than bracket balancing is reported as
// ErrMalformedJSON so the caller can regenerate or fall through.
package schema

import (
	"errors"
	"fmt"

	"astrohub/internal/models"
)

var (
	// ErrEmptyResponse means the completion contained no text after fence stripping
	ErrEmptyResponse = errors.New("empty response")

	// ErrMalformedJSON means the text could not be parsed even after repair
	ErrMalformedJSON = errors.New("malformed JSON")

	// ErrSchemaViolation means the parsed value does not match the dataset schema
	ErrSchemaViolation = errors.New("schema violation")
)

// Schema is the declarative shape a dataset's records must satisfy
type Schema struct {
	Shape  models.ShapeKind
	Fields []models.FieldSpec
}

// FromSpec builds the validation schema of a generation spec
func FromSpec(spec *models.GenerationSpec) *Schema {
	return &Schema{Shape: spec.Shape, Fields: spec.Fields}
}

// ViolationError describes which record and field broke the schema
type ViolationError struct {
	Index  int // record index, -1 for top-level problems
	Field  string
	Reason string
}

func (e *ViolationError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("schema violation: %s", e.Reason)
	case e.Field == "":
		return fmt.Sprintf("schema violation: record %d: %s", e.Index, e.Reason)
	default:
		return fmt.Sprintf("schema violation: record %d field %q: %s", e.Index, e.Field, e.Reason)
	}
}

func (e *ViolationError) Unwrap() error {
	return ErrSchemaViolation
}

func violation(index int, field, format string, args ...any) error {
	return &ViolationError{Index: index, Field: field, Reason: fmt.Sprintf(format, args...)}
}
