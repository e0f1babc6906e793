package extract

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fieldsSchemaJSON constrains what a model may return for structured receipt
// fields. Models are prompted to omit unknown fields rather than emit nulls.
const fieldsSchemaJSON = `{
  "type": "object",
  "properties": {
    "merchant":    {"type": "string", "minLength": 1},
    "amount":      {"type": "number", "exclusiveMinimum": 0},
    "date":        {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "category_id": {"type": "integer", "minimum": 1},
    "confidence":  {"type": "integer", "minimum": 0, "maximum": 100},
    "reasoning":   {"type": "string"}
  },
  "additionalProperties": false
}`

var fieldsSchema = jsonschema.MustCompileString("receipt_fields.json", fieldsSchemaJSON)

// ParseModelFields decodes and validates a model's structured-field response.
// Markdown code fences around the JSON are tolerated; anything that fails
// schema validation is rejected so a hallucinated shape cannot overwrite
// heuristic values.
func ParseModelFields(payload string) (Fields, error) {
	cleaned := stripCodeFence(payload)

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return Fields{}, eris.Wrap(err, "extract: model response is not JSON")
	}
	if err := fieldsSchema.Validate(doc); err != nil {
		return Fields{}, eris.Wrap(err, "extract: model response failed schema validation")
	}

	var f Fields
	if err := json.Unmarshal([]byte(cleaned), &f); err != nil {
		return Fields{}, eris.Wrap(err, "extract: unmarshal model fields")
	}
	return f, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
