package catalog

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// moduleSchema is the JSON Schema every module YAML document must satisfy.
const moduleSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "year", "order", "title", "difficulty", "questions"],
  "additionalProperties": false,
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "year": {"type": "integer", "minimum": 1},
    "order": {"type": "integer", "minimum": 1},
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "icon": {"type": "string"},
    "difficulty": {"enum": ["basic", "intermediate", "advanced"]},
    "estimated_duration_minutes": {"type": "integer", "minimum": 0},
    "passing_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "legacy_keys": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "theory": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "content"],
        "additionalProperties": false,
        "properties": {
          "title": {"type": "string"},
          "content": {"type": "string"}
        }
      }
    },
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "text", "options"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "integer", "minimum": 1},
          "text": {"type": "string", "minLength": 1},
          "options": {
            "type": "array",
            "minItems": 2,
            "items": {
              "type": "object",
              "required": ["id", "text"],
              "additionalProperties": false,
              "properties": {
                "id": {"type": "integer", "minimum": 0},
                "text": {"type": "string"},
                "correct": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`

var compiledModuleSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(moduleSchema))
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid module schema: %v", err))
	}
	compiledModuleSchema = s
}

// validateDocument checks a decoded YAML document against the module schema
// and returns one message per violation.
func validateDocument(doc any) ([]string, error) {
	result, err := compiledModuleSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validating module document: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return msgs, nil
}
