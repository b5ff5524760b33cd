package mnr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProvenanceKey holds validation provenance on a normalized form. Keys with
// a leading underscore are metadata and never map into target documents.
const ProvenanceKey = "_provenance"

// stringFields are trimmed during normalization.
var stringFields = []string{
	"Primary_Care_Physician", "Physician_Phone", "Employer",
	"Current_Health_Problems", "When_Began", "How_Happened",
	"Pain_Medication", "Health_History",
}

// booleanStructures carry Yes/No or checkbox flags that extractors sometimes
// return as strings or numbers.
var booleanStructures = []string{
	"Under_Physician_Care", "Treatment_Received", "New_Complaints",
	"Re_Injuries", "Helpful_Treatments", "Pain_Quality",
	"Progress_Since_Acupuncture", "Relief_Duration",
	"Upcoming_Treatment_Course", "Pregnant",
}

// Process validates a form tree, coerces recoverable deviations, and
// attaches provenance. The returned form is a deep copy; the input is never
// mutated. ok reports whether the mandatory fields were present; other
// validation issues are recorded in provenance but do not fail processing.
func Process(form Form) (Form, bool) {
	issues := Validate(form)

	cleaned := copyTree(form)
	coercePainLevels(cleaned)
	trimStringFields(cleaned)
	coerceBooleanStructures(cleaned)

	cleaned[ProvenanceKey] = map[string]any{
		"validator":    "mnr",
		"processed_at": time.Now().UTC().Format(time.RFC3339),
		"issues":       issues,
	}

	return cleaned, len(checkRequired(form)) == 0
}

func copyTree(v Form) Form {
	out := make(Form, len(v))
	for k, val := range v {
		out[k] = copyValue(val)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyTree(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}

// coercePainLevels rewrites bare numeric pain values into the canonical
// "N/10" form. Values that cannot be parsed are left untouched.
func coercePainLevels(form Form) {
	levels, ok := form["Pain_Level"].(map[string]any)
	if !ok {
		return
	}
	for key, value := range levels {
		if isEmpty(value) {
			continue
		}
		s := fmt.Sprintf("%v", value)
		if strings.HasSuffix(s, "/10") {
			levels[key] = s
			continue
		}
		head := strings.SplitN(s, "/", 2)[0]
		if n, err := strconv.ParseFloat(strings.TrimSpace(head), 64); err == nil {
			levels[key] = fmt.Sprintf("%d/10", int(n))
		}
	}
}

func trimStringFields(form Form) {
	for _, field := range stringFields {
		if v, ok := form[field]; ok && !isEmpty(v) {
			form[field] = strings.TrimSpace(fmt.Sprintf("%v", v))
		}
	}
}

func coerceBooleanStructures(form Form) {
	for _, structure := range booleanStructures {
		m, ok := form[structure].(map[string]any)
		if !ok {
			continue
		}
		for key, value := range m {
			switch t := value.(type) {
			case bool:
				continue
			case string:
				switch strings.ToLower(t) {
				case "true", "1":
					m[key] = true
				case "false", "0":
					m[key] = false
				}
			case float64:
				if t == 1 {
					m[key] = true
				} else if t == 0 {
					m[key] = false
				}
			case int:
				if t == 1 {
					m[key] = true
				} else if t == 0 {
					m[key] = false
				}
			}
		}
	}
}
