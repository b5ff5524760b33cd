package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mids-neo/mnr-form-api/internal/document"
)

// scriptedRunner answers tesseract invocations with canned text.
type scriptedRunner struct {
	text  string
	fail  bool
	calls int
}

func (s *scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls++
	if s.fail {
		return nil, []byte("tesseract blew up"), errors.New("exit status 1")
	}
	if strings.Contains(strings.Join(args, " "), "--version") || (len(args) > 0 && args[0] == "--version") {
		return []byte("tesseract 5.3.0"), nil, nil
	}
	return []byte(s.text), nil, nil
}

func newTestLegacy(runner document.Runner) *LegacyExtractor {
	raster := document.NewRasterizer("pdftoppm", 300, nil)
	return NewLegacyExtractor(LegacyConfig{}, raster, nil).WithRunner(runner)
}

func legacyPNGDoc() *document.Document {
	// image input skips pdftoppm, only tesseract runs
	return pngDoc()
}

func TestLegacyExtractor_Extract(t *testing.T) {
	runner := &scriptedRunner{text: `Primary Care Physician: Dr. Adams
Weight: 170
Current pain 9/10`}

	l := newTestLegacy(runner)
	res, err := l.Extract(context.Background(), legacyPNGDoc())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, MethodLegacyOCR, res.Method)
	assert.InDelta(t, 0.52, res.Confidence, 1e-9)
	assert.Equal(t, "Dr. Adams", res.Fields["Primary_Care_Physician"])
	assert.Equal(t, 170, res.Fields["Weight_lbs"])

	meta := res.Fields[MetadataKey].(map[string]any)
	assert.Equal(t, "legacy_ocr", meta["method"])

	stats := l.Stats()
	assert.Equal(t, 1, stats.Successes)
}

func TestLegacyExtractor_EmptyOCRIsFailure(t *testing.T) {
	runner := &scriptedRunner{text: "   \n  "}

	l := newTestLegacy(runner)
	res, err := l.Extract(context.Background(), legacyPNGDoc())

	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "no text")
	assert.Equal(t, 1, l.Stats().Failures)
}

func TestLegacyExtractor_TesseractFailure(t *testing.T) {
	runner := &scriptedRunner{fail: true}

	l := newTestLegacy(runner)
	res, err := l.Extract(context.Background(), legacyPNGDoc())

	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, err.Error(), "tesseract")
}

func TestLegacyExtractor_Available(t *testing.T) {
	ok, status := newTestLegacy(&scriptedRunner{}).Available()
	assert.True(t, ok)
	assert.Contains(t, status, "ready")

	ok, status = newTestLegacy(&scriptedRunner{fail: true}).Available()
	assert.False(t, ok)
	assert.Contains(t, status, "not available")
}
