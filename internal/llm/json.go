// File path: internal/llm/json.go
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON parses a JSON document out of a chat completion. Models often
// wrap their answer in markdown fences or prose, so the payload is located
// between the first opening brace or bracket and its matching end.
func DecodeJSON(text string, v interface{}) error {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return fmt.Errorf("no JSON payload in response")
	}
	var end int
	if trimmed[start] == '{' {
		end = strings.LastIndex(trimmed, "}")
	} else {
		end = strings.LastIndex(trimmed, "]")
	}
	if end <= start {
		return fmt.Errorf("unterminated JSON payload in response")
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), v); err != nil {
		return fmt.Errorf("decode response JSON: %w", err)
	}
	return nil
}
