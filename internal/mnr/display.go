package mnr

import (
	"fmt"
	"strings"
)

// DisplayValues flattens a normalized form into the flat strings the MNR
// template fill works with. Pain levels split into one key per slot, and
// composite measurements render in their conventional notation. Absent or
// empty fields are omitted.
func DisplayValues(form Form) map[string]string {
	values := make(map[string]string)

	put := func(key string, raw any) {
		if raw == nil {
			return
		}
		s := strings.TrimSpace(displayString(raw))
		if s != "" {
			values[key] = s
		}
	}

	for _, key := range []string{
		"Primary_Care_Physician", "Physician_Phone", "Employer",
		"Job_Description", "Current_Health_Problems", "When_Began",
		"How_Happened", "Pain_Medication", "Health_History",
		"Daily_Activity_Interference", "Date", "Signature",
	} {
		put(key, form[key])
	}

	if pain, ok := form["Pain_Level"].(map[string]any); ok {
		put("Pain_Level_Average", pain["Average_Past_Week"])
		put("Pain_Level_Worst", pain["Worst_Past_Week"])
		put("Pain_Level_Current", pain["Current"])
	}

	if height, ok := form["Height"].(map[string]any); ok {
		feet, hasFeet := height["feet"]
		inches, hasInches := height["inches"]
		if hasFeet && hasInches && feet != nil && inches != nil {
			put("Height", fmt.Sprintf("%s'%s\"", displayString(feet), displayString(inches)))
		}
	}

	put("Weight_lbs", form["Weight_lbs"])

	if bp, ok := form["Blood_Pressure"].(map[string]any); ok {
		systolic, diastolic := bp["systolic"], bp["diastolic"]
		if systolic != nil && diastolic != nil {
			put("Blood_Pressure", fmt.Sprintf("%s/%s", displayString(systolic), displayString(diastolic)))
		}
	}

	return values
}

func displayString(v any) string {
	switch t := v.(type) {
	case string:
		return t
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
