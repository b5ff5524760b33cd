package fill

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// fillStructured writes values into the template's native AcroForm widgets
// by exact field-name match, coercing to the widget's type. Returns the
// number of fields written and the template's total named field count.
func fillStructured(data Values, fm *FieldMap, template []byte, out io.Writer, warn func(string)) (int, int, error) {
	ctx, err := readTemplateContext(template)
	if err != nil {
		return 0, 0, err
	}

	filled := 0
	total := 0

	err = walkFormFields(ctx, func(fieldDict types.Dict, name string, fieldType FieldType, readOnly bool) error {
		total++
		if readOnly {
			return nil
		}

		semantic, ok := fm.SemanticFor(name)
		if !ok {
			return nil
		}
		value, ok := data[semantic]
		if !ok || value == "" {
			return nil
		}
		if mapping, found := fm.Table.mapping(semantic); found && mapping.PerSlot {
			value = activitySlot(value, name)
			if value == "" {
				return nil
			}
		}

		switch fieldType {
		case FieldTypeText, FieldTypeSelect:
			fieldDict["V"] = types.StringLiteral(value)
			filled++
		case FieldTypeCheckbox:
			state := types.Name("Off")
			if truthy(value) {
				state = types.Name("Yes")
			}
			fieldDict["V"] = state
			setWidgetState(ctx, fieldDict, state)
			filled++
		case FieldTypeRadio:
			state, ok := radioOnState(ctx, fieldDict, value)
			if !ok {
				warn(fmt.Sprintf("radio group %q has no selectable state", name))
				return nil
			}
			fieldDict["V"] = state
			setWidgetState(ctx, fieldDict, state)
			filled++
		default:
			warn(fmt.Sprintf("field %q has unsupported type %s", name, fieldType))
		}
		return nil
	})
	if err != nil {
		return 0, total, err
	}

	if filled == 0 {
		if total == 0 {
			return 0, 0, fmt.Errorf("template has no form fields")
		}
		return 0, total, fmt.Errorf("no mapped values matched the template's %d fields", total)
	}

	if err := setNeedAppearances(ctx); err != nil {
		return filled, total, err
	}
	if err := api.WriteContext(ctx, out); err != nil {
		return filled, total, fmt.Errorf("failed to write filled PDF: %w", err)
	}
	return filled, total, nil
}

// radioOnState resolves the appearance state to select for a radio group.
// A value matching one of the group's export states selects that state by
// name; any other truthy value selects the first state. The state names
// come from the widgets' appearance dictionaries, never from the value
// text, so a free-form value cannot produce a state no widget can render.
func radioOnState(ctx *model.Context, fieldDict types.Dict, value string) (types.Name, bool) {
	states := radioStates(ctx, fieldDict)
	for _, s := range states {
		if strings.EqualFold(s, value) {
			return types.Name(s), true
		}
	}
	if !truthy(value) {
		return types.Name("Off"), true
	}
	if len(states) > 0 {
		return types.Name(states[0]), true
	}
	return "", false
}

// radioStates collects the non-Off appearance state names across a button
// field and its widget annotations, sorted for deterministic selection.
func radioStates(ctx *model.Context, fieldDict types.Dict) []string {
	seen := make(map[string]bool)
	var states []string
	collect := func(d types.Dict) {
		apObj, found := d.Find("AP")
		if !found {
			return
		}
		apDict, err := ctx.DereferenceDict(apObj)
		if err != nil || apDict == nil {
			return
		}
		nObj, found := apDict.Find("N")
		if !found {
			return
		}
		nDict, err := ctx.DereferenceDict(nObj)
		if err != nil || nDict == nil {
			return
		}
		for name := range nDict {
			if name != "Off" && !seen[name] {
				seen[name] = true
				states = append(states, name)
			}
		}
	}

	collect(fieldDict)
	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kidsArray, err := ctx.DereferenceArray(kidsObj); err == nil {
			for _, kid := range kidsArray {
				if kidDict, err := ctx.DereferenceDict(kid); err == nil && kidDict != nil {
					collect(kidDict)
				}
			}
		}
	}
	sort.Strings(states)
	return states
}

// setWidgetState updates the appearance state of a button field's widget
// annotations so viewers render the checked state without regenerating
// appearances. A widget whose appearance dictionary lacks the selected
// state shows Off instead.
func setWidgetState(ctx *model.Context, fieldDict types.Dict, state types.Name) {
	if _, found := fieldDict.Find("Rect"); found {
		fieldDict["AS"] = state
	}
	kidsObj, found := fieldDict.Find("Kids")
	if !found {
		return
	}
	kidsArray, err := ctx.DereferenceArray(kidsObj)
	if err != nil {
		return
	}
	for _, kid := range kidsArray {
		kidDict, err := ctx.DereferenceDict(kid)
		if err != nil || kidDict == nil {
			continue
		}
		if state == "Off" || widgetHasState(ctx, kidDict, state) {
			kidDict["AS"] = state
		} else {
			kidDict["AS"] = types.Name("Off")
		}
	}
}

// widgetHasState reports whether a widget's normal appearance dictionary
// carries an entry for the given state.
func widgetHasState(ctx *model.Context, widgetDict types.Dict, state types.Name) bool {
	apObj, found := widgetDict.Find("AP")
	if !found {
		return false
	}
	apDict, err := ctx.DereferenceDict(apObj)
	if err != nil || apDict == nil {
		return false
	}
	nObj, found := apDict.Find("N")
	if !found {
		return false
	}
	nDict, err := ctx.DereferenceDict(nObj)
	if err != nil || nDict == nil {
		return false
	}
	_, found = nDict.Find(string(state))
	return found
}

// setNeedAppearances flags the AcroForm so viewers rebuild text field
// appearance streams for the new values.
func setNeedAppearances(ctx *model.Context) error {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}
	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil || acroFormDict == nil {
		return nil
	}
	acroFormDict["NeedAppearances"] = types.Boolean(true)
	return nil
}
