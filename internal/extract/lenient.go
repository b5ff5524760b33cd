package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeLoose parses model output that is supposed to be a JSON object but
// may arrive wrapped in markdown code fences or surrounded by prose.
func DecodeLoose(content string) (map[string]any, error) {
	s := strings.TrimSpace(content)

	// strip ``` / ```json fences
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	// fall back to the outermost brace pair
	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object in model output")
		}
		s = s[start : end+1]
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	return out, nil
}
