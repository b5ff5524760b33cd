package fill

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// FieldType classifies a template widget.
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeRadio     FieldType = "radio"
	FieldTypeSelect    FieldType = "select"
	FieldTypeSignature FieldType = "signature"
	FieldTypeUnknown   FieldType = "unknown"
)

// TemplateField is one named AcroForm field found in a template.
type TemplateField struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	ReadOnly bool      `json:"read_only"`
}

// ListFields enumerates the named AcroForm fields of a PDF template.
// Templates without an AcroForm dictionary yield an empty slice, not an
// error; the overlay method handles those.
func ListFields(template []byte) ([]TemplateField, error) {
	ctx, err := readTemplateContext(template)
	if err != nil {
		return nil, err
	}

	var fields []TemplateField
	err = walkFormFields(ctx, func(_ types.Dict, name string, fieldType FieldType, readOnly bool) error {
		fields = append(fields, TemplateField{Name: name, Type: fieldType, ReadOnly: readOnly})
		return nil
	})
	return fields, err
}

func readTemplateContext(template []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(template), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx, nil
}

// walkFormFields visits every named field in the AcroForm Fields array,
// recursing into Kids when a node carries no name of its own.
func walkFormFields(ctx *model.Context, visit func(field types.Dict, name string, fieldType FieldType, readOnly bool) error) error {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	for _, fieldRef := range fieldsArray {
		if err := visitField(ctx, fieldRef, visit); err != nil {
			return err
		}
	}
	return nil
}

func visitField(ctx *model.Context, fieldObj types.Object, visit func(types.Dict, string, FieldType, bool) error) error {
	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil || fieldDict == nil {
		// Unresolvable entries are skipped, not fatal; partially broken
		// templates still fill what they can.
		return nil
	}

	name := fieldName(ctx, fieldDict)
	if name == "" {
		// Unnamed node: descend into Kids looking for named terminals.
		if kidsObj, found := fieldDict.Find("Kids"); found {
			if kidsArray, err := ctx.DereferenceArray(kidsObj); err == nil {
				for _, kid := range kidsArray {
					if err := visitField(ctx, kid, visit); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	readOnly := false
	if flagsObj, found := fieldDict.Find("Ff"); found {
		if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
			readOnly = (*flags & 1) != 0
		}
	}

	return visit(fieldDict, name, fieldTypeOf(ctx, fieldDict), readOnly)
}

func fieldName(ctx *model.Context, fieldDict types.Dict) string {
	nameObj, found := fieldDict.Find("T")
	if !found {
		return ""
	}
	name, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil)
	if err != nil {
		return ""
	}
	return name
}

// fieldTypeOf determines the field type from the FT entry, consulting the
// parent for inherited types.
func fieldTypeOf(ctx *model.Context, fieldDict types.Dict) FieldType {
	ftObj, found := fieldDict.Find("FT")
	if !found {
		if parentObj, found := fieldDict.Find("Parent"); found {
			if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
				return fieldTypeOf(ctx, parentDict)
			}
		}
		return FieldTypeUnknown
	}

	ftName, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return FieldTypeUnknown
	}

	switch ftName {
	case "Btn":
		if flagsObj, found := fieldDict.Find("Ff"); found {
			if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
				if (*flags & (1 << 15)) != 0 { // Bit 16: Radio
					return FieldTypeRadio
				}
			}
		}
		return FieldTypeCheckbox
	case "Tx":
		return FieldTypeText
	case "Ch":
		return FieldTypeSelect
	case "Sig":
		return FieldTypeSignature
	default:
		return FieldTypeUnknown
	}
}
