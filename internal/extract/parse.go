package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mids-neo/mnr-form-api/internal/mnr"
)

// textFieldRules capture single-line answers following a printed label.
// Order matters only for readability; each rule is independent.
var textFieldRules = []struct {
	field   string
	pattern *regexp.Regexp
}{
	{"Primary_Care_Physician", regexp.MustCompile(`(?i)Primary Care Physician[:\s]*([^\n]+)`)},
	{"Physician_Phone", regexp.MustCompile(`(?i)(?:Phone|Tel)[:\s]*([^\n]+)`)},
	{"Employer", regexp.MustCompile(`(?i)Employer[:\s]*([^\n]+)`)},
	{"Current_Health_Problems", regexp.MustCompile(`(?i)current health problem[s]?[:\s]*([^\n]+)`)},
	{"When_Began", regexp.MustCompile(`(?i)When.*began[:\s]*([^\n]+)`)},
	{"How_Happened", regexp.MustCompile(`(?i)How.*happened[:\s]*([^\n]+)`)},
	{"Pain_Medication", regexp.MustCompile(`(?i)Pain Medication[:\s]*([^\n]+)`)},
	{"Date", regexp.MustCompile(`(?i)Date[:\s]*([^\n]+)`)},
}

// painRules capture a number near a scale label, with or without the /10.
var painRules = []struct {
	key     string
	pattern *regexp.Regexp
}{
	{"Average_Past_Week", regexp.MustCompile(`(?i)Average.*?(\d+)(?:/10)?`)},
	{"Worst_Past_Week", regexp.MustCompile(`(?i)Worst.*?(\d+)(?:/10)?`)},
	{"Current", regexp.MustCompile(`(?i)Current.*?(\d+)(?:/10)?`)},
}

var (
	heightRule = regexp.MustCompile(`(?i)Height[:\s]*(\d+)['"]*\s*(\d+)`)
	weightRule = regexp.MustCompile(`(?i)Weight[:\s]*(\d+)`)
)

// treatmentCheckboxes are detected by an X or checkmark near the label.
var treatmentCheckboxes = []string{
	"Surgery", "Medications", "Physical_Therapy", "Chiropractic", "Massage", "Injections",
}

// ParseFormText turns raw OCR text into a partial form tree. Rules that do
// not match leave their field absent; parsing itself never fails.
func ParseFormText(text string) mnr.Form {
	form := mnr.Form{}

	for _, rule := range textFieldRules {
		if m := rule.pattern.FindStringSubmatch(text); m != nil {
			form[rule.field] = strings.TrimSpace(m[1])
		}
	}

	painLevels := map[string]any{}
	for _, rule := range painRules {
		if m := rule.pattern.FindStringSubmatch(text); m != nil {
			painLevels[rule.key] = m[1] + "/10"
		}
	}
	if len(painLevels) > 0 {
		form["Pain_Level"] = painLevels
	}

	if m := heightRule.FindStringSubmatch(text); m != nil {
		feet, _ := strconv.Atoi(m[1])
		inches, _ := strconv.Atoi(m[2])
		form["Height"] = map[string]any{"feet": feet, "inches": inches}
	}

	if m := weightRule.FindStringSubmatch(text); m != nil {
		weight, _ := strconv.Atoi(m[1])
		form["Weight_lbs"] = weight
	}

	treatment := map[string]any{}
	for _, label := range treatmentCheckboxes {
		pattern := regexp.MustCompile(fmt.Sprintf(`(?i)%s[\s\[\]]*[Xx✓✗]`, regexp.QuoteMeta(label)))
		treatment[label] = pattern.MatchString(text)
	}
	form["Treatment_Received"] = treatment

	return form
}
