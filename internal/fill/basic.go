package fill

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// fillBasic is the loose variant of the form-field method: text widgets
// only, matched by case-insensitive substring against the table's anchor
// phrases instead of exact field names. Used when the template's field
// names drifted from the mapping table.
func fillBasic(data Values, fm *FieldMap, template []byte, out io.Writer, warn func(string)) (int, int, error) {
	ctx, err := readTemplateContext(template)
	if err != nil {
		return 0, 0, err
	}

	filled := 0
	total := 0
	used := make(map[string]bool)

	err = walkFormFields(ctx, func(fieldDict types.Dict, name string, fieldType FieldType, readOnly bool) error {
		total++
		if readOnly || fieldType != FieldTypeText {
			return nil
		}

		semantic := matchFieldLabel(fm.Table, name, used)
		if semantic == "" {
			return nil
		}
		value, ok := data[semantic]
		if !ok || value == "" {
			return nil
		}

		fieldDict["V"] = types.StringLiteral(value)
		used[semantic] = true
		filled++
		return nil
	})
	if err != nil {
		return 0, total, err
	}

	if filled == 0 {
		if total == 0 {
			return 0, 0, fmt.Errorf("template has no form fields")
		}
		warn(fmt.Sprintf("no field labels matched among %d fields", total))
		return 0, total, fmt.Errorf("no field labels matched")
	}

	if err := setNeedAppearances(ctx); err != nil {
		return filled, total, err
	}
	if err := api.WriteContext(ctx, out); err != nil {
		return filled, total, fmt.Errorf("failed to write filled PDF: %w", err)
	}
	return filled, total, nil
}

// matchFieldLabel finds the first table entry whose anchor phrase occurs in
// the field name. Each semantic key fills at most one field here.
func matchFieldLabel(table Table, fieldName string, used map[string]bool) string {
	lower := strings.ToLower(fieldName)
	for _, m := range table {
		if used[m.Semantic] {
			continue
		}
		for _, term := range m.Anchors {
			if strings.Contains(lower, strings.ToLower(term)) {
				return m.Semantic
			}
		}
	}
	return ""
}
