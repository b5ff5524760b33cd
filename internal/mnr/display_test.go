package mnr

import "testing"

func TestDisplayValues(t *testing.T) {
	form := Form{
		"Primary_Care_Physician": "Dr. Adams",
		"Current_Health_Problems": "Lower back pain",
		"Pain_Level": map[string]any{
			"Average_Past_Week": "6/10",
			"Worst_Past_Week":   "8/10",
			"Current":           "9/10",
		},
		"Height":         map[string]any{"feet": float64(5), "inches": float64(10)},
		"Weight_lbs":     float64(170),
		"Blood_Pressure": map[string]any{"systolic": float64(120), "diastolic": float64(80)},
	}

	values := DisplayValues(form)

	cases := map[string]string{
		"Primary_Care_Physician":  "Dr. Adams",
		"Current_Health_Problems": "Lower back pain",
		"Pain_Level_Average":      "6/10",
		"Pain_Level_Worst":        "8/10",
		"Pain_Level_Current":      "9/10",
		"Height":                  `5'10"`,
		"Weight_lbs":              "170",
		"Blood_Pressure":          "120/80",
	}
	for key, want := range cases {
		if got := values[key]; got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestDisplayValuesOmitsAbsent(t *testing.T) {
	values := DisplayValues(Form{
		"Employer": "   ",
		"Height":   map[string]any{"feet": float64(5)},
	})

	if _, ok := values["Employer"]; ok {
		t.Error("blank employer should be omitted")
	}
	if _, ok := values["Height"]; ok {
		t.Error("height without inches should be omitted")
	}
	if len(values) != 0 {
		t.Errorf("expected empty values, got %v", values)
	}
}
