package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"astrohub/internal/models"
)

// ParseAndValidate strips, repairs, parses and validates raw completion text.
// Object schemas yield a single-record list.
func ParseAndValidate(raw string, s *Schema) (models.Records, error) {
	text := StripCodeFence(raw)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	text = RepairTruncated(text)

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	return Check(parsed, s)
}

// Check validates an already-decoded JSON value against the schema and returns
// normalized records. Fallback data is checked with the same function at startup.
func Check(value any, s *Schema) (models.Records, error) {
	switch s.Shape {
	case models.ShapeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, violation(-1, "", "expected a JSON object, got %s", jsonKind(value))
		}
		rec, err := checkRecord(0, obj, s.Fields)
		if err != nil {
			return nil, err
		}
		return models.Records{rec}, nil

	default:
		items, ok := value.([]any)
		if !ok {
			return nil, violation(-1, "", "expected a JSON array, got %s", jsonKind(value))
		}
		if len(items) == 0 {
			return nil, violation(-1, "", "no records")
		}
		out := make(models.Records, 0, len(items))
		for i, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, violation(i, "", "expected an object, got %s", jsonKind(item))
			}
			rec, err := checkRecord(i, obj, s.Fields)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil
	}
}

// checkRecord validates one object. Unknown fields pass through untouched.
func checkRecord(index int, obj map[string]any, fields []models.FieldSpec) (models.Record, error) {
	rec := models.Record(obj)
	for _, f := range fields {
		val, exists := rec[f.Name]
		if !exists {
			if f.Required {
				return nil, violation(index, f.Name, "missing required field")
			}
			continue
		}

		if val == nil {
			if f.Required && !f.Nullable {
				return nil, violation(index, f.Name, "required field is null")
			}
			continue
		}

		// Scalars arriving where a list is declared become one-element lists
		if f.Type == models.FieldArray && isScalar(val) {
			val = []any{val}
			rec[f.Name] = val
		}

		if err := validateFieldType(val, f.Type); err != nil {
			return nil, violation(index, f.Name, "%v", err)
		}

		if f.Length > 0 {
			if arr, ok := val.([]any); ok && len(arr) != f.Length {
				return nil, violation(index, f.Name, "expected %d elements, got %d", f.Length, len(arr))
			}
		}

		if str, ok := val.(string); ok {
			switch f.Normalize {
			case models.NormalizeLower:
				rec[f.Name] = strings.ToLower(strings.TrimSpace(str))
			case models.NormalizeTrim:
				rec[f.Name] = strings.TrimSpace(str)
			}
		}
	}
	return rec, nil
}

// validateFieldType checks if a value matches the expected JSON type
func validateFieldType(val any, expected models.FieldType) error {
	switch expected {
	case models.FieldString:
		if _, ok := val.(string); !ok {
			return fmt.Errorf("expected string, got %s", jsonKind(val))
		}
	case models.FieldNumber:
		if _, ok := val.(float64); !ok {
			return fmt.Errorf("expected number, got %s", jsonKind(val))
		}
	case models.FieldBoolean:
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("expected boolean, got %s", jsonKind(val))
		}
	case models.FieldArray:
		if _, ok := val.([]any); !ok {
			return fmt.Errorf("expected array, got %s", jsonKind(val))
		}
	case models.FieldObject:
		if _, ok := val.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %s", jsonKind(val))
		}
	}
	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, bool:
		return true
	}
	return false
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
