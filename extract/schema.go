// Package extract holds the UI-agnostic extraction workflow: the job
// client/polling state machine, the result schema boundary, the reconciler
// that flattens a structured result into menu item drafts, and the bulk
// persistence driver.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/leonclem/one-minute-menu-sub003/model"
)

// SchemaError marks a structured result that failed boundary validation.
// It is distinct from transport and job failures so callers can degrade to
// the "incomplete result" path instead of a generic error.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("result schema violation: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// IsSchemaError reports whether err is a result-schema violation
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// buildResultSchema returns a JSON-Schema (draft 2020-12 subset) for the
// structured extraction result, as a generic map. The same document could be
// handed to a provider as a structured-output constraint.
func buildResultSchema() map[string]any {
	confidence := map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}

	item := map[string]any{
		"type":     "object",
		"required": []string{"name", "price"},
		"properties": map[string]any{
			"name":        map[string]any{"type": "string", "minLength": 1},
			"price":       map[string]any{"type": "number", "minimum": 0},
			"description": map[string]any{"type": "string"},
			"confidence":  confidence,
		},
	}

	category := map[string]any{
		"type":     "object",
		"required": []string{"name"},
		"properties": map[string]any{
			"name":          map[string]any{"type": "string", "minLength": 1},
			"items":         map[string]any{"type": "array", "items": item},
			"subcategories": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/$defs/category"}},
			"confidence":    confidence,
		},
	}

	uncertain := map[string]any{
		"type":     "object",
		"required": []string{"raw_text"},
		"properties": map[string]any{
			"raw_text":           map[string]any{"type": "string", "minLength": 1},
			"reason":             map[string]any{"type": "string"},
			"confidence":         confidence,
			"suggested_category": map[string]any{"type": "string"},
			"suggested_price":    map[string]any{"type": "number", "minimum": 0},
		},
	}

	return map[string]any{
		"type":     "object",
		"required": []string{"menu"},
		"$defs":    map[string]any{"category": category},
		"properties": map[string]any{
			"menu": map[string]any{
				"type":     "object",
				"required": []string{"categories"},
				"properties": map[string]any{
					"categories": map[string]any{
						"type":  "array",
						"items": map[string]any{"$ref": "#/$defs/category"},
					},
				},
			},
			"uncertain_items":  map[string]any{"type": "array", "items": uncertain},
			"superfluous_text": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
}

var resultSchema = mustCompileResultSchema()

func mustCompileResultSchema() *jsonschema.Schema {
	b, err := json.Marshal(buildResultSchema())
	if err != nil {
		panic(fmt.Sprintf("marshal result schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("result.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add result schema: %v", err))
	}
	schema, err := compiler.Compile("result.json")
	if err != nil {
		panic(fmt.Sprintf("compile result schema: %v", err))
	}
	return schema
}

// ParseResult validates raw extraction output against the result schema and
// decodes it. The dynamic provider payload is checked once here instead of
// being poked at with nil checks throughout the business logic.
func ParseResult(raw json.RawMessage) (*model.StructuredMenuResult, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &SchemaError{Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := resultSchema.Validate(v); err != nil {
		return nil, &SchemaError{Err: err}
	}

	var result model.StructuredMenuResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &SchemaError{Err: fmt.Errorf("decode result: %w", err)}
	}
	return &result, nil
}

// HasUsableResult reports whether a completed job's payload actually carries
// extracted categories. A completed status with an empty tree is treated as
// incomplete, never shown for review.
func HasUsableResult(result *model.StructuredMenuResult) bool {
	return result != nil && len(result.Menu.Categories) > 0
}
