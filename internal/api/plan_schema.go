// File path: internal/api/plan_schema.go
package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// planEditSchema guards the plan edit payload at the boundary so malformed
// edits are rejected before the engine sees them.
const planEditSchema = `{
  "type": "object",
  "required": ["weeks"],
  "additionalProperties": false,
  "properties": {
    "weeks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["week_number", "title"],
        "properties": {
          "week_number": {"type": "integer", "minimum": 1},
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "learning_outcomes": {"type": "array", "items": {"type": "string"}},
          "lecture_topics": {"type": "array", "items": {"type": "string"}},
          "tutorial_activities": {"type": "array", "items": {"type": "string"}},
          "lab_activities": {"type": "array", "items": {"type": "string"}},
          "readings": {"type": "array", "items": {"type": "string"}},
          "deliverables": {"type": "array", "items": {"type": "string"}},
          "teaching_notes": {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  }
}`

var planEditLoader = gojsonschema.NewStringLoader(planEditSchema)

// validatePlanPayload reads the request body and checks it against the plan
// edit schema, returning the raw bytes for decoding on success.
func validatePlanPayload(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	result, err := gojsonschema.Validate(planEditLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("plan payload is not valid JSON: %w", err)
	}
	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return nil, fmt.Errorf("plan payload invalid: %s", strings.Join(reasons, "; "))
	}
	return body, nil
}
