package mnr

import (
	"fmt"
	"strings"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindObject
	kindList
	kindScalar // string or number, e.g. interference ratings
)

// fieldTypes is the declared type table for top-level form fields.
var fieldTypes = map[string]fieldKind{
	"Primary_Care_Physician": kindString,
	"Physician_Phone":        kindString,
	"Employer":               kindString,
	"Job_Description":        kindString,
	"Under_Physician_Care":   kindObject,

	"Current_Health_Problems": kindString,
	"When_Began":              kindString,
	"How_Happened":            kindString,
	"Health_History":          kindString,

	"Treatment_Received":         kindObject,
	"Helpful_Treatments":         kindObject,
	"Progress_Since_Acupuncture": kindObject,
	"Relief_Duration":            kindObject,
	"Upcoming_Treatment_Course":  kindObject,

	"Pain_Level":                  kindObject,
	"Pain_Medication":             kindString,
	"Pain_Quality":                kindObject,
	"Daily_Activity_Interference": kindScalar,

	"Height":         kindObject,
	"Weight_lbs":     kindNumber,
	"Blood_Pressure": kindObject,

	"Activities_Monitored":          kindList,
	"Symptoms_Past_Week_Percentage": kindObject,

	"Pregnant":       kindObject,
	"New_Complaints": kindObject,
	"Re_Injuries":    kindObject,

	"Date":      kindString,
	"Signature": kindString,
}

var activityEntryFields = []string{"Activity", "Measurement", "How_has_changed"}

// Validate collects every issue found in a form tree. Issues are advisory:
// processing continues with best-effort coercion regardless.
func Validate(form Form) []string {
	var issues []string

	issues = append(issues, checkRequired(form)...)
	issues = append(issues, checkTypes(form)...)
	issues = append(issues, checkPainLevels(form)...)
	issues = append(issues, checkHeightWeight(form)...)
	issues = append(issues, checkActivities(form)...)

	return issues
}

func checkRequired(form Form) []string {
	var issues []string
	for _, field := range RequiredFields {
		if isEmpty(form[field]) {
			issues = append(issues, fmt.Sprintf("missing required field: %s", field))
		}
	}
	return issues
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

func checkTypes(form Form) []string {
	var issues []string
	for field, kind := range fieldTypes {
		v, ok := form[field]
		if !ok || v == nil {
			continue
		}
		if !kindMatches(kind, v) {
			issues = append(issues, fmt.Sprintf("invalid type for %s: got %T", field, v))
		}
	}
	return issues
}

func kindMatches(kind fieldKind, v any) bool {
	switch kind {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindNumber:
		return isNumeric(v)
	case kindObject:
		_, ok := v.(map[string]any)
		return ok
	case kindList:
		_, ok := v.([]any)
		return ok
	case kindScalar:
		if _, ok := v.(string); ok {
			return true
		}
		return isNumeric(v)
	}
	return false
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

func checkPainLevels(form Form) []string {
	levels, ok := form["Pain_Level"].(map[string]any)
	if !ok {
		return nil
	}
	var issues []string
	for key, value := range levels {
		if isEmpty(value) {
			continue
		}
		if !strings.HasSuffix(fmt.Sprintf("%v", value), "/10") {
			issues = append(issues, fmt.Sprintf("pain level %s should be in 'X/10' format, got: %v", key, value))
		}
	}
	return issues
}

func checkHeightWeight(form Form) []string {
	var issues []string

	if height, ok := form["Height"].(map[string]any); ok {
		if feet, present := numericValue(height["feet"]); present && (feet < 0 || feet > 10) {
			issues = append(issues, fmt.Sprintf("invalid height feet: %v (should be 0-10)", height["feet"]))
		}
		if inches, present := numericValue(height["inches"]); present && (inches < 0 || inches > 11) {
			issues = append(issues, fmt.Sprintf("invalid height inches: %v (should be 0-11)", height["inches"]))
		}
	}

	if weight, present := numericValue(form["Weight_lbs"]); present && (weight < 0 || weight > 1000) {
		issues = append(issues, fmt.Sprintf("invalid weight: %v (should be 0-1000 lbs)", form["Weight_lbs"]))
	}

	return issues
}

func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

func checkActivities(form Form) []string {
	activities, ok := form["Activities_Monitored"].([]any)
	if !ok {
		return nil
	}
	var issues []string
	for i, entry := range activities {
		activity, ok := entry.(map[string]any)
		if !ok {
			issues = append(issues, fmt.Sprintf("activity %d should be an object", i))
			continue
		}
		for _, field := range activityEntryFields {
			if _, present := activity[field]; !present {
				issues = append(issues, fmt.Sprintf("activity %d missing field: %s", i, field))
			}
		}
	}
	return issues
}
