// Package ash maps normalized intake form data to the flat ASH document
// schema. Mapping is a pure function over the source tree: deterministic,
// lossy (unmapped source keys drop silently), and independent of any I/O.
package ash

import (
	"fmt"
	"sort"
	"strings"
)

// MetadataKey holds mapping provenance on a mapped form. Underscore-prefixed
// keys are metadata and are never written into target PDFs.
const MetadataKey = "_mapping"

// directMappings connect scalar source fields to their ASH names.
var directMappings = []struct {
	source string
	target string
}{
	{"Primary_Care_Physician", "primary_care_physician"},
	{"Physician_Phone", "physician_phone"},
	{"Current_Health_Problems", "health_problems"},
	{"When_Began", "when_began"},
	{"How_Happened", "how_happened"},
	{"Pain_Medication", "pain_medication"},
	{"Health_History", "health_history"},
	{"Employer", "employer"},
	{"Job_Description", "job_description"},
	{"Date", "date"},
	{"Signature", "signature"},
}

// painMappings rename the nested pain scale entries.
var painMappings = []struct {
	source string
	target string
}{
	{"Average_Past_Week", "average_pain"},
	{"Worst_Past_Week", "worst_pain"},
	{"Current", "current_pain"},
}

// Map converts a normalized intake tree into the flat ASH key space. Every
// value in the result is a string or passthrough scalar ready for PDF
// filling. Underscore-prefixed source keys are never consulted.
func Map(form map[string]any) map[string]any {
	out := map[string]any{}

	for _, m := range directMappings {
		if v, ok := form[m.source]; ok && !emptyValue(v) {
			out[m.target] = v
		}
	}

	mapHeight(form, out)
	mapWeight(form, out)
	mapBloodPressure(form, out)
	mapPainLevels(form, out)

	mapFlagSet(form, out, "Treatment_Received", "treatments_received", false)
	mapFlagSet(form, out, "Pain_Quality", "pain_quality", false)
	mapFlagSet(form, out, "Helpful_Treatments", "helpful_treatments", true)
	mapFlagSet(form, out, "Progress_Since_Acupuncture", "progress_since_acupuncture", false)

	mapActivities(form, out)
	mapInterference(form, out)
	mapReliefDuration(form, out)
	mapSymptomsPercentage(form, out)
	mapPregnant(form, out)

	mapYesNoExplain(form, out, "New_Complaints", "new_complaints", "Explain")
	mapYesNoExplain(form, out, "Re_Injuries", "re_injuries", "Explain")
	mapYesNoExplain(form, out, "Under_Physician_Care", "under_physician_care", "Conditions")

	mapTreatmentCourse(form, out)

	mapped := 0
	for k := range out {
		if !strings.HasPrefix(k, "_") {
			mapped++
		}
	}
	out[MetadataKey] = map[string]any{
		"mapped_from":   "MNR",
		"source_fields": len(form),
		"mapped_fields": mapped,
	}

	return out
}

func emptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	}
	return false
}

func mapHeight(form, out map[string]any) {
	height, ok := form["Height"].(map[string]any)
	if !ok {
		return
	}
	feet := scalarString(height["feet"])
	inches := scalarString(height["inches"])
	// A height of 0'0" carries no information; emit only when at least one
	// component is a real measurement.
	if (feet == "" || feet == "0") && (inches == "" || inches == "0") {
		return
	}
	out["height"] = fmt.Sprintf("%s'%s\"", feet, inches)
}

func mapWeight(form, out map[string]any) {
	if w := scalarString(form["Weight_lbs"]); w != "" && w != "0" {
		out["weight"] = w + " lbs"
	}
}

func mapBloodPressure(form, out map[string]any) {
	bp, ok := form["Blood_Pressure"].(map[string]any)
	if !ok {
		return
	}
	systolic := scalarString(bp["systolic"])
	diastolic := scalarString(bp["diastolic"])
	if systolic != "" || diastolic != "" {
		out["blood_pressure"] = systolic + "/" + diastolic
	}
}

func mapPainLevels(form, out map[string]any) {
	levels, ok := form["Pain_Level"].(map[string]any)
	if !ok {
		return
	}
	for _, m := range painMappings {
		if v, present := levels[m.source]; present && !emptyValue(v) {
			out[m.target] = v
		}
	}
}

// mapFlagSet joins the true flags of a checkbox group into a comma-separated
// phrase, underscores restored to spaces. withOther appends a trailing
// "Other: ..." when the group carries a free-text Other entry.
func mapFlagSet(form, out map[string]any, source, target string, withOther bool) {
	group, ok := form[source].(map[string]any)
	if !ok {
		return
	}

	var set []string
	for _, key := range sortedKeys(group) {
		if group[key] == true {
			set = append(set, strings.ReplaceAll(key, "_", " "))
		}
	}

	if withOther {
		if other := scalarString(group["Other"]); other != "" {
			set = append(set, "Other: "+other)
		}
	}

	if len(set) > 0 {
		out[target] = strings.Join(set, ", ")
	}
}

func mapActivities(form, out map[string]any) {
	activities, ok := form["Activities_Monitored"].([]any)
	if !ok || len(activities) == 0 {
		return
	}

	var descriptions []string
	for _, entry := range activities {
		activity, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		var parts []string
		if v := scalarString(activity["Activity"]); v != "" {
			parts = append(parts, "Activity: "+v)
		}
		if v := scalarString(activity["Measurement"]); v != "" {
			parts = append(parts, "Measurement: "+v)
		}
		if v := scalarString(activity["How_has_changed"]); v != "" {
			parts = append(parts, "Change: "+v)
		}
		if len(parts) > 0 {
			descriptions = append(descriptions, strings.Join(parts, " | "))
		}
	}

	if len(descriptions) > 0 {
		out["activities_monitored"] = strings.Join(descriptions, "; ")
	}
}

func mapInterference(form, out map[string]any) {
	if v, ok := form["Daily_Activity_Interference"]; ok && !emptyValue(v) {
		out["daily_activity_interference"] = scalarString(v)
	}
}

func mapReliefDuration(form, out map[string]any) {
	relief, ok := form["Relief_Duration"].(map[string]any)
	if !ok {
		return
	}

	var parts []string
	if relief["Hours"] == true {
		if n := scalarString(relief["Hours_Number"]); n != "" {
			parts = append(parts, n+" hours")
		} else {
			parts = append(parts, "Hours")
		}
	}
	if relief["Days"] == true {
		if n := scalarString(relief["Days_Number"]); n != "" {
			parts = append(parts, n+" days")
		} else {
			parts = append(parts, "Days")
		}
	}

	if len(parts) > 0 {
		out["relief_duration"] = strings.Join(parts, ", ")
	}
}

// mapSymptomsPercentage joins checked percentage buckets, bucket labels
// carried verbatim ("41-50%" stays "41-50%").
func mapSymptomsPercentage(form, out map[string]any) {
	symptoms, ok := form["Symptoms_Past_Week_Percentage"].(map[string]any)
	if !ok {
		return
	}

	var buckets []string
	for _, key := range sortedKeys(symptoms) {
		if symptoms[key] == true {
			buckets = append(buckets, key)
		}
	}

	if len(buckets) > 0 {
		out["symptoms_percentage"] = strings.Join(buckets, ", ")
	}
}

func mapPregnant(form, out map[string]any) {
	pregnant, ok := form["Pregnant"].(map[string]any)
	if !ok {
		return
	}

	switch {
	case pregnant["Yes"] == true:
		value := "Yes"
		if weeks := scalarString(pregnant["Weeks"]); weeks != "" {
			value += ", " + weeks + " weeks"
		}
		if physician := scalarString(pregnant["Physician"]); physician != "" {
			value += ", Physician: " + physician
		}
		out["pregnant"] = value
	case pregnant["No"] == true:
		out["pregnant"] = "No"
	}
}

// mapYesNoExplain renders a Yes/No pair with an optional free-text rider as
// "Yes: explanation" or "No".
func mapYesNoExplain(form, out map[string]any, source, target, riderKey string) {
	group, ok := form[source].(map[string]any)
	if !ok {
		return
	}

	switch {
	case group["Yes"] == true:
		value := "Yes"
		if rider := scalarString(group[riderKey]); rider != "" {
			value += ": " + rider
		}
		out[target] = value
	case group["No"] == true:
		out[target] = "No"
	}
}

func mapTreatmentCourse(form, out map[string]any) {
	course, ok := form["Upcoming_Treatment_Course"].(map[string]any)
	if !ok {
		return
	}

	var parts []string
	for _, key := range sortedKeys(course) {
		if course[key] == true {
			parts = append(parts, strings.ReplaceAll(key, "_", " "))
		}
	}

	if dates := scalarString(course["Out_of_Town_Dates"]); dates != "" {
		parts = append(parts, "Out of town: "+dates)
	}

	if len(parts) > 0 {
		out["upcoming_treatment_course"] = strings.Join(parts, ", ")
	}
}

// scalarString renders numbers and strings for concatenation; nil, empty
// strings and non-scalars render empty. Integral floats drop their decimal
// point so JSON-decoded numbers read naturally.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case float32:
		return scalarString(float64(t))
	case int, int32, int64:
		return fmt.Sprintf("%d", t)
	case bool:
		return ""
	}
	return ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
