package fill

import (
	"log/slog"
	"strings"
)

// Mapping binds one semantic data key to its template addresses: exact PDF
// field names for the form-field methods and anchor phrases for the overlay
// method. PerSlot marks joined list values that are split across several
// template fields.
type Mapping struct {
	Semantic  string
	Fields    []string
	Anchors   []string
	Multiline bool
	PerSlot   bool
}

// Table is the static semantic-key table for one template.
type Table []Mapping

func (t Table) mapping(semantic string) (Mapping, bool) {
	for _, m := range t {
		if m.Semantic == semantic {
			return m, true
		}
	}
	return Mapping{}, false
}

// ASHTable maps the flat target-schema keys onto the ASH claim form
// template's field names and label phrases.
func ASHTable() Table {
	return Table{
		{Semantic: "primary_care_physician", Fields: []string{"PCP Name"}, Anchors: []string{"PCP Name", "Primary Care Physician"}},
		{Semantic: "physician_phone", Fields: []string{"PCP Phone number", "Area code for PCP phone number"}, Anchors: []string{"PCP Phone", "Physician Phone"}},
		{Semantic: "employer", Fields: []string{"Employer"}, Anchors: []string{"Employer"}},
		{Semantic: "job_description", Fields: []string{"Group"}, Anchors: []string{"Group", "Job Description"}},
		{Semantic: "health_problems", Fields: []string{"Chief Complaint(s)", "Condition 1"}, Anchors: []string{"Chief Complaint"}, Multiline: true},
		{Semantic: "when_began", Fields: []string{"Date", "Date 2"}, Anchors: []string{"Date of Onset", "When began"}},
		{Semantic: "how_happened", Fields: []string{"Cause of Condition/Injury"}, Anchors: []string{"Cause of Condition"}, Multiline: true},
		{Semantic: "current_pain", Fields: []string{"Pain Level"}, Anchors: []string{"Current Pain Level", "Pain Level"}},
		{Semantic: "average_pain", Fields: []string{"Pain Level 2"}, Anchors: []string{"Average Pain Level"}},
		{Semantic: "worst_pain", Fields: []string{"Pain Level 3"}, Anchors: []string{"Worst Pain Level"}},
		{Semantic: "height", Fields: []string{"Height"}, Anchors: []string{"Height"}},
		{Semantic: "weight", Fields: []string{"Weight"}, Anchors: []string{"Weight"}},
		{Semantic: "blood_pressure", Fields: []string{"Blood Pressure", "Blood Pressure 2"}, Anchors: []string{"Blood Pressure"}},
		{Semantic: "pain_medication", Fields: []string{"Changes in Pain Medication Use eg name frequency amount dosage"}, Anchors: []string{"Pain Medication"}, Multiline: true},
		{Semantic: "treatments_received", Fields: []string{"Other Comments eg Responses to Care Barriers to Progress Patient Health History 1"}, Anchors: []string{"Treatments Received"}, Multiline: true},
		{Semantic: "helpful_treatments", Fields: []string{"Other Comments eg Responses to Care Barriers to Progress Patient Health History 2"}, Anchors: []string{"Helpful Treatments", "What has helped"}, Multiline: true},
		{
			Semantic: "activities_monitored",
			Fields:   []string{"Activity#0", "Activity#1", "Measurements", "Measurements#1", "How has it changed?", "How has it changed?#1"},
			Anchors:  []string{"Activity"},
			PerSlot:  true,
		},
		{Semantic: "daily_activity_interference", Fields: []string{"Frequency"}, Anchors: []string{"daily activity"}},
		{Semantic: "pain_quality", Fields: []string{"Observation"}, Anchors: []string{"Pain Quality", "Observation"}},
		{Semantic: "progress_since_acupuncture", Fields: []string{"Response to most recent Treatment Plan"}, Anchors: []string{"Response to most recent"}, Multiline: true},
		{Semantic: "relief_duration", Fields: []string{"How long does relief last?"}, Anchors: []string{"How long does relief last"}},
		{Semantic: "symptoms_percentage", Fields: []string{"Frequency 2", "Frequency 3"}, Anchors: []string{"percentage of time"}},
		{Semantic: "pregnant", Fields: []string{"# of weeks pregnant"}, Anchors: []string{"pregnant"}},
		{Semantic: "under_physician_care", Fields: []string{"Under Physician Care"}, Anchors: []string{"physician's care", "Under Physician Care"}},
		{Semantic: "new_complaints", Fields: []string{"Treatment Goals"}, Anchors: []string{"New Complaints", "Treatment Goals"}, Multiline: true},
		{Semantic: "re_injuries", Fields: []string{"How will you measure progress toward these goals"}, Anchors: []string{"Re-injuries", "measure progress"}, Multiline: true},
		{Semantic: "upcoming_treatment_course", Fields: []string{"Total  of Therapies for Requested Dates"}, Anchors: []string{"Requested Dates", "treatment course"}},
		{Semantic: "health_history", Fields: []string{"Patient Health History"}, Anchors: []string{"Health History"}, Multiline: true},
		{Semantic: "date", Fields: []string{"Date of Signature"}, Anchors: []string{"Date of Signature", "DATE"}},
		{Semantic: "signature", Fields: []string{"Signature"}, Anchors: []string{"SIGNATURE"}},
	}
}

// MNRTable maps intake-schema keys onto the MNR form. The production MNR
// template carries no AcroForm fields, so these entries are anchor-driven
// and empty Fields lists are expected.
func MNRTable() Table {
	return Table{
		{Semantic: "Primary_Care_Physician", Anchors: []string{"Primary Care Physician", "Primary care physician"}},
		{Semantic: "Physician_Phone", Anchors: []string{"Physician Phone", "Phone"}},
		{Semantic: "Employer", Anchors: []string{"Employer"}},
		{Semantic: "Job_Description", Anchors: []string{"Job Description", "Job Title"}},
		{Semantic: "Current_Health_Problems", Anchors: []string{"current health problem", "Current health problems"}, Multiline: true},
		{Semantic: "When_Began", Anchors: []string{"When it began?", "When began"}},
		{Semantic: "How_Happened", Anchors: []string{"How it happened?", "How happened"}, Multiline: true},
		{Semantic: "Pain_Medication", Anchors: []string{"Pain Medication (Name, Dosage, Frequency)", "Pain Medication"}, Multiline: true},
		{Semantic: "Health_History", Anchors: []string{"Pertinent Health history", "Health History"}, Multiline: true},
		{Semantic: "Pain_Level_Average", Anchors: []string{"Average Pain Level in the past week", "Average pain"}},
		{Semantic: "Pain_Level_Worst", Anchors: []string{"Worse Pain Level in the past week", "Worst pain"}},
		{Semantic: "Pain_Level_Current", Anchors: []string{"Current Pain Level", "Current pain"}},
		{Semantic: "Daily_Activity_Interference", Anchors: []string{"How has it interfered with your daily activity"}},
		{Semantic: "Height", Anchors: []string{"Height"}},
		{Semantic: "Weight_lbs", Anchors: []string{"Weight"}},
		{Semantic: "Blood_Pressure", Anchors: []string{"Blood Pressure"}},
		{Semantic: "Date", Anchors: []string{"DATE", "Today's Date"}},
		{Semantic: "Signature", Anchors: []string{"SIGNATURE:", "Signature"}},
	}
}

// FieldMap is a Table cross-validated against one template's live field
// inventory. Built once per template at startup.
type FieldMap struct {
	Table          Table
	TemplateFields []TemplateField

	// bySemantic holds, per semantic key, the mapped field names actually
	// present in the template, in table order.
	bySemantic map[string][]string
	// semanticOf reverses the intersection: template field name to the
	// semantic key that feeds it.
	semanticOf map[string]string

	// UnmappedFields lists semantic keys whose declared fields are all
	// absent from the template. Diagnostic only.
	UnmappedFields []string
}

// BuildFieldMap enumerates the template's fields and intersects them with
// the static table. Semantic keys with no live counterpart are logged and
// recorded, never fatal: anchor-driven overlay can still place them.
func BuildFieldMap(template []byte, table Table, logger *slog.Logger) (*FieldMap, error) {
	if logger == nil {
		logger = slog.Default()
	}

	templateFields, err := ListFields(template)
	if err != nil {
		return nil, err
	}

	fm := newFieldMap(table, templateFields)

	if len(fm.UnmappedFields) > 0 {
		logger.Warn("fieldmap.unmapped",
			"count", len(fm.UnmappedFields),
			"semantics", strings.Join(fm.UnmappedFields, ","))
	}
	logger.Debug("fieldmap.built",
		"template_fields", len(templateFields),
		"mapped_semantics", len(fm.bySemantic))

	return fm, nil
}

// newFieldMap intersects the static table with a live field inventory.
func newFieldMap(table Table, templateFields []TemplateField) *FieldMap {
	present := make(map[string]bool, len(templateFields))
	for _, f := range templateFields {
		present[f.Name] = true
	}

	fm := &FieldMap{
		Table:          table,
		TemplateFields: templateFields,
		bySemantic:     make(map[string][]string),
		semanticOf:     make(map[string]string),
	}

	for _, m := range table {
		var live []string
		for _, name := range m.Fields {
			if present[name] {
				live = append(live, name)
				fm.semanticOf[name] = m.Semantic
			}
		}
		if len(live) > 0 {
			fm.bySemantic[m.Semantic] = live
			continue
		}
		if len(m.Fields) > 0 {
			fm.UnmappedFields = append(fm.UnmappedFields, m.Semantic)
		}
	}
	return fm
}

// SemanticFor returns the semantic key feeding a template field name.
func (fm *FieldMap) SemanticFor(pdfField string) (string, bool) {
	s, ok := fm.semanticOf[pdfField]
	return s, ok
}

// FieldsFor returns the live template fields for a semantic key.
func (fm *FieldMap) FieldsFor(semantic string) []string {
	return fm.bySemantic[semantic]
}

// MappedCount reports how many semantic keys resolved to live fields.
func (fm *FieldMap) MappedCount() int {
	return len(fm.bySemantic)
}

// activitySlot extracts one slot value from a joined activities string of
// the form "Activity: X | Measurement: Y | Change: Z; Activity: ...". The
// template spreads the first two entries across six dedicated fields.
func activitySlot(joined, pdfField string) string {
	entries := strings.Split(joined, ";")

	entryAt := func(i int) (string, bool) {
		if i >= len(entries) {
			return "", false
		}
		return strings.TrimSpace(entries[i]), true
	}
	segment := func(entry, label string) string {
		idx := strings.Index(entry, label)
		if idx < 0 {
			return ""
		}
		rest := entry[idx+len(label):]
		if bar := strings.Index(rest, "|"); bar >= 0 {
			rest = rest[:bar]
		}
		return strings.TrimSpace(rest)
	}

	var index int
	var label string
	switch pdfField {
	case "Activity#0":
		index, label = 0, "Activity:"
	case "Activity#1":
		index, label = 1, "Activity:"
	case "Measurements":
		index, label = 0, "Measurement:"
	case "Measurements#1":
		index, label = 1, "Measurement:"
	case "How has it changed?":
		index, label = 0, "Change:"
	case "How has it changed?#1":
		index, label = 1, "Change:"
	default:
		return ""
	}

	entry, ok := entryAt(index)
	if !ok {
		return ""
	}
	return segment(entry, label)
}
