package fill

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// formTemplate generates a single-page PDF with live AcroForm widgets: a
// text field, a checkbox, and a two-state radio group.
func formTemplate(t *testing.T) []byte {
	t.Helper()

	spec := `{
		"paper": "A4",
		"origin": "lowerLeft",
		"fonts": {
			"input": {"name": "Helvetica", "size": 12},
			"label": {"name": "Helvetica", "size": 10}
		},
		"pages": {
			"1": {
				"content": {
					"textfield": [
						{"id": "PCP Name", "pos": [100, 700], "width": 200}
					],
					"checkbox": [
						{"id": "Under Care", "pos": [100, 650], "width": 12}
					],
					"radiobuttongroup": [
						{
							"id": "Progress",
							"pos": [100, 600],
							"width": 12,
							"orientation": "hor",
							"buttons": {
								"values": ["Good", "Poor"],
								"label": {"value": "dummy", "width": 50, "gap": 10, "pos": "right"}
							}
						}
					]
				}
			}
		}
	}`

	var buf bytes.Buffer
	require.NoError(t, api.Create(nil, strings.NewReader(spec), &buf, nil))
	return buf.Bytes()
}

// overlayTemplate builds a minimal field-less PDF whose page text carries
// the anchor phrases "Weight:" and "Current Pain Level:". The font declares
// explicit widths so text extraction sees real glyph positions.
func overlayTemplate() []byte {
	content := "BT /F1 12 Tf 72 700 Td (Weight:) Tj ET\n" +
		"BT /F1 12 Tf 72 650 Td (Current Pain Level:) Tj ET\n"
	widths := strings.TrimSpace(strings.Repeat("500 ", 95))
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
			"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content),
		fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica "+
			"/FirstChar 32 /LastChar 126 /Widths [%s] /Encoding /WinAnsiEncoding >>", widths),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefPos)
	return buf.Bytes()
}

// fieldValues reads back the V entry of every named field in a filled PDF.
func fieldValues(t *testing.T, filled []byte) map[string]string {
	t.Helper()

	ctx, err := readTemplateContext(filled)
	require.NoError(t, err)

	values := make(map[string]string)
	err = walkFormFields(ctx, func(fieldDict types.Dict, name string, _ FieldType, _ bool) error {
		obj, found := fieldDict.Find("V")
		if !found {
			return nil
		}
		switch v := obj.(type) {
		case types.StringLiteral:
			s, err := types.StringLiteralToString(v)
			require.NoError(t, err)
			values[name] = s
		case types.HexLiteral:
			s, err := types.HexLiteralToString(v)
			require.NoError(t, err)
			values[name] = s
		case types.Name:
			values[name] = v.Value()
		}
		return nil
	})
	require.NoError(t, err)
	return values
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngineFillsNativeFormFields(t *testing.T) {
	template := formTemplate(t)
	table := Table{
		{Semantic: "primary_care_physician", Fields: []string{"PCP Name"}},
		{Semantic: "under_physician_care", Fields: []string{"Under Care"}},
		{Semantic: "progress_since_acupuncture", Fields: []string{"Progress"}},
	}

	engine, err := NewEngine(template, table, true, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, engine.FieldMap().MappedCount())

	out := filepath.Join(t.TempDir(), "filled.pdf")
	result := engine.Fill(Values{
		"primary_care_physician":     "Dr. Adams",
		"under_physician_care":       "Yes",
		"progress_since_acupuncture": "Poor",
	}, out)

	require.True(t, result.Success, strings.Join(result.Warnings, "; "))
	assert.Equal(t, MethodStructured, result.Method)
	assert.Equal(t, 3, result.FieldsFilled)

	filled, err := os.ReadFile(out)
	require.NoError(t, err)

	got := fieldValues(t, filled)
	assert.Equal(t, "Dr. Adams", got["PCP Name"])
	assert.Equal(t, "Yes", got["Under Care"])
	assert.Equal(t, "Poor", got["Progress"])
}

func TestEngineFallsBackToOverlayWithoutFields(t *testing.T) {
	template := overlayTemplate()

	engine, err := NewEngine(template, MNRTable(), true, discardLogger())
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "filled.pdf")
	result := engine.Fill(Values{
		"Weight_lbs":         "170 lbs",
		"Pain_Level_Current": "7/10",
	}, out)

	require.True(t, result.Success, strings.Join(result.Warnings, "; "))
	assert.Equal(t, MethodOverlay, result.Method)
	assert.Equal(t, 2, result.FieldsFilled)

	// Both form-field methods must have failed first on the field-less page.
	warnText := strings.Join(result.Warnings, "\n")
	assert.Contains(t, warnText, string(MethodStructured))
	assert.Contains(t, warnText, string(MethodBasic))

	filled, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(filled, []byte("%PDF")))
	assert.Greater(t, len(filled), len(template))
}
