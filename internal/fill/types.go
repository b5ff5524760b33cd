// Package fill writes a flat field/value map onto a PDF template. Three
// methods are tried in a fixed cascade: native AcroForm widgets, loose
// label matching on text widgets, and a positioned text overlay for
// templates with no usable form fields.
package fill

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Method identifies which fill strategy produced a result.
type Method string

const (
	MethodStructured Method = "structured_fields"
	MethodBasic      Method = "basic_fields"
	MethodOverlay    Method = "overlay"
	MethodAllFailed  Method = "all_failed"
)

// ErrAllMethodsFailed reports that every fill method was attempted and none
// produced output.
var ErrAllMethodsFailed = errors.New("all PDF filling methods failed")

// Result describes one fill attempt over a template.
type Result struct {
	Success      bool          `json:"success"`
	OutputPath   string        `json:"output_path,omitempty"`
	FieldsFilled int           `json:"fields_filled"`
	TotalFields  int           `json:"total_fields"`
	Method       Method        `json:"method_used"`
	Warnings     []string      `json:"warnings,omitempty"`
	Elapsed      time.Duration `json:"-"`
	Err          string        `json:"error,omitempty"`
}

// Values is the flat field/value map a fill operates on.
type Values map[string]string

// ValuesFrom flattens a mapped form into fill values. Metadata keys
// (leading underscore) and empty values are dropped; numbers render without
// a decimal point when integral.
func ValuesFrom(form map[string]any) Values {
	values := make(Values, len(form))
	for key, raw := range form {
		if strings.HasPrefix(key, "_") || raw == nil {
			continue
		}
		s := stringify(raw)
		if strings.TrimSpace(s) == "" {
			continue
		}
		values[key] = s
	}
	return values
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case int:
		return fmt.Sprintf("%d", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// truthy mirrors checkbox coercion: recognized affirmative strings check the
// box, anything else clears it.
func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true", "1", "on", "checked":
		return true
	}
	return false
}
