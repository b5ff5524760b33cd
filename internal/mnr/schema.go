// Package mnr validates and normalizes extracted medical intake form data.
// The form tree is a nested map keyed by the canonical field names the
// extractors produce; validation collects issues without halting so a
// partially legible scan still flows through the pipeline.
package mnr

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Form is an extracted intake form tree.
type Form = map[string]any

// Required top-level fields: a form missing any of these cannot produce a
// usable claim document.
var RequiredFields = []string{
	"Primary_Care_Physician",
	"Current_Health_Problems",
	"Pain_Level",
}

// Schema returns a JSON-Schema (draft 2020-12 subset) for the intake form
// as a generic map. It constrains the shape, not completeness: every field
// is optional so validation can report issues instead of rejecting trees.
func Schema() map[string]any {
	yesNo := func(extra map[string]any) map[string]any {
		props := map[string]any{
			"No":  map[string]any{"type": "boolean"},
			"Yes": map[string]any{"type": "boolean"},
		}
		for k, v := range extra {
			props[k] = v
		}
		return map[string]any{"type": "object", "properties": props}
	}
	str := map[string]any{"type": []any{"string", "null"}}
	flagSet := func(keys ...string) map[string]any {
		props := map[string]any{}
		for _, k := range keys {
			props[k] = map[string]any{"type": "boolean"}
		}
		return map[string]any{"type": "object", "properties": props}
	}

	props := map[string]any{
		"Primary_Care_Physician": str,
		"Physician_Phone":        str,
		"Employer":               str,
		"Job_Description":        str,
		"Under_Physician_Care":   yesNo(map[string]any{"Conditions": str}),

		"Current_Health_Problems": str,
		"When_Began":              str,
		"How_Happened":            str,
		"Health_History":          str,

		"Treatment_Received": flagSet("Surgery", "Medications", "Physical_Therapy", "Chiropractic", "Massage", "Injections"),
		"Helpful_Treatments": flagSet("Acupuncture", "Chinese_Herbs", "Massage_Therapy", "Nutritional_Supplements",
			"Prescription_Medications", "Physical_Therapy", "Rehab_Home_Care", "Spinal_Adjustment_Manipulation"),
		"Progress_Since_Acupuncture": flagSet("Excellent", "Good", "Fair", "Poor", "Worse"),
		"Relief_Duration": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"Hours":        map[string]any{"type": "boolean"},
				"Hours_Number": map[string]any{"type": []any{"integer", "null"}},
				"Days":         map[string]any{"type": "boolean"},
				"Days_Number":  map[string]any{"type": []any{"integer", "null"}},
			},
		},
		"Upcoming_Treatment_Course": map[string]any{"type": "object"},

		"Pain_Level": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"Average_Past_Week": painProp(),
				"Worst_Past_Week":   painProp(),
				"Current":           painProp(),
			},
		},
		"Pain_Medication":             str,
		"Pain_Quality":                flagSet("Sharp", "Throbbing", "Ache", "Burning", "Numb", "Tingling"),
		"Daily_Activity_Interference": map[string]any{"type": []any{"string", "number", "null"}},

		"Height": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"feet":   map[string]any{"type": []any{"integer", "null"}, "minimum": 0, "maximum": 10},
				"inches": map[string]any{"type": []any{"integer", "null"}, "minimum": 0, "maximum": 11},
			},
		},
		"Weight_lbs": map[string]any{"type": []any{"number", "null"}, "minimum": 0, "maximum": 1000},
		"Blood_Pressure": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"systolic":  map[string]any{"type": []any{"integer", "null"}, "minimum": 0, "maximum": 300},
				"diastolic": map[string]any{"type": []any{"integer", "null"}, "minimum": 0, "maximum": 200},
			},
		},

		"Activities_Monitored": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"Activity":        str,
					"Measurement":     str,
					"How_has_changed": str,
				},
			},
		},
		"Symptoms_Past_Week_Percentage": map[string]any{"type": "object"},

		"Pregnant": yesNo(map[string]any{
			"Weeks":     map[string]any{"type": []any{"integer", "null"}},
			"Physician": str,
		}),
		"New_Complaints": yesNo(map[string]any{"Explain": str}),
		"Re_Injuries":    yesNo(map[string]any{"Explain": str}),

		"Date":      str,
		"Signature": str,
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func painProp() map[string]any {
	return map[string]any{"type": []any{"string", "null"}, "pattern": `^\d+/10$`}
}

// ValidateShape checks a form tree against the container structure of the
// intake schema: objects where objects belong, arrays where arrays belong.
// Scalar values are deliberately unconstrained here. Value-level deviations
// such as a numeric pain level are Validate's and Process's to collect and
// coerce, so an extraction is never rejected over a coercible value.
func ValidateShape(form Form) error {
	b, err := json.Marshal(shapeOnly(Schema()))
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("mnr.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("mnr.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	// Round-trip through JSON so typed values (int vs float64) compare the
	// way they arrive off the wire.
	data, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("marshal form: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal form: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("form does not match schema: %w", err)
	}
	return nil
}

// shapeOnly strips value constraints from a schema node, keeping just the
// object and array skeleton. Scalar nodes relax to an empty schema that
// accepts anything.
func shapeOnly(node map[string]any) map[string]any {
	switch {
	case hasType(node, "object"):
		out := map[string]any{"type": []any{"object", "null"}}
		if props, ok := node["properties"].(map[string]any); ok {
			relaxed := make(map[string]any, len(props))
			for k, v := range props {
				if sub, ok := v.(map[string]any); ok {
					relaxed[k] = shapeOnly(sub)
				}
			}
			out["properties"] = relaxed
		}
		return out
	case hasType(node, "array"):
		out := map[string]any{"type": []any{"array", "null"}}
		if items, ok := node["items"].(map[string]any); ok {
			out["items"] = shapeOnly(items)
		}
		return out
	}
	return map[string]any{}
}

func hasType(node map[string]any, want string) bool {
	switch t := node["type"].(type) {
	case string:
		return t == want
	case []any:
		for _, v := range t {
			if v == want {
				return true
			}
		}
	}
	return false
}
