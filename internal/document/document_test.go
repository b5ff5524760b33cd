package document

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBytes_MIMESniffing(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		wantMIME string
		wantPDF  bool
	}{
		{
			name:     "pdf by magic bytes",
			filename: "scan.bin",
			data:     []byte("%PDF-1.7\nrest of file"),
			wantMIME: "application/pdf",
			wantPDF:  true,
		},
		{
			name:     "png by magic bytes",
			filename: "scan.dat",
			data:     []byte("\x89PNG\r\n\x1a\nrest"),
			wantMIME: "image/png",
		},
		{
			name:     "jpeg by magic bytes",
			filename: "scan",
			data:     []byte("\xff\xd8\xffrest"),
			wantMIME: "image/jpeg",
		},
		{
			name:     "extension fallback for pdf",
			filename: "scan.pdf",
			data:     []byte("not really a header"),
			wantMIME: "application/pdf",
		},
		{
			name:     "unknown content",
			filename: "scan.xyz",
			data:     []byte("mystery"),
			wantMIME: "application/octet-stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := FromBytes(tt.filename, tt.data)
			assert.Equal(t, tt.wantMIME, doc.MIME)
			assert.Equal(t, tt.wantPDF, doc.IsPDF())
		})
	}
}

func TestDocument_Hash(t *testing.T) {
	a := FromBytes("first.pdf", []byte("%PDF-1.7 content"))
	b := FromBytes("second.pdf", []byte("%PDF-1.7 content"))
	c := FromBytes("first.pdf", []byte("%PDF-1.7 different"))

	// Identical bytes hash identically regardless of filename
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Len(t, a.Hash(), 64)
}

func TestDocument_BaseName(t *testing.T) {
	doc := FromBytes("patient_intake.pdf", []byte("%PDF-"))
	assert.Equal(t, "patient_intake", doc.BaseName())

	doc = FromBytes("scan", []byte("x"))
	assert.Equal(t, "scan", doc.BaseName())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "form.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o600))

	doc, err := Load(path, 1024)
	require.NoError(t, err)
	assert.Equal(t, "form.pdf", doc.Name)
	assert.True(t, doc.IsPDF())
}

func TestLoad_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 100), 0o600))

	_, err := Load(path, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum size")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load("/non/existent/form.pdf", 0)
	require.Error(t, err)
}

func TestPrepareForVision_Downscale(t *testing.T) {
	// Render a solid image wider than the vision cap
	src := image.NewRGBA(image.Rect(0, 0, MaxVisionDimension*2, 100))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := PrepareForVision(buf.Bytes())
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, MaxVisionDimension, decoded.Bounds().Dx())
	assert.Equal(t, 50, decoded.Bounds().Dy())
}

func TestPrepareForVision_SmallImagePassthrough(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 640, 480))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := PrepareForVision(buf.Bytes())
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 640, decoded.Bounds().Dx())
	assert.Equal(t, 480, decoded.Bounds().Dy())
}

func TestPrepareForVision_BadData(t *testing.T) {
	_, err := PrepareForVision([]byte("not an image"))
	require.Error(t, err)
}

func TestPNGDataURL(t *testing.T) {
	url := PNGDataURL([]byte{1, 2, 3})
	assert.Contains(t, url, "data:image/png;base64,")
}

// fakeRunner records commands and fabricates pdftoppm page output.
type fakeRunner struct {
	calls [][]string
	pages int
	fail  bool
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.fail {
		return nil, []byte("boom"), assert.AnError
	}

	// pdftoppm writes <prefix>-N.png files; mimic that
	prefix := args[len(args)-1]
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, nil, err
	}
	for i := 1; i <= f.pages; i++ {
		path := prefix + "-" + strconv.Itoa(i) + ".png"
		if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func TestRasterizer_FirstPage(t *testing.T) {
	runner := &fakeRunner{pages: 2}
	r := NewRasterizer("pdftoppm", 150, nil).WithRunner(runner)

	doc := FromBytes("form.pdf", []byte("%PDF-1.4"))
	page, err := r.FirstPage(context.Background(), doc)
	require.NoError(t, err)
	assert.NotEmpty(t, page)
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0], "-png")
	assert.Contains(t, runner.calls[0], "150")
}

func TestRasterizer_FirstPage_ImagePassthrough(t *testing.T) {
	runner := &fakeRunner{pages: 1}
	r := NewRasterizer("", 0, nil).WithRunner(runner)

	doc := FromBytes("form.png", []byte("\x89PNG\r\n\x1a\ncontent"))
	page, err := r.FirstPage(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, doc.Data, page)
	assert.Empty(t, runner.calls, "image input must not invoke pdftoppm")
}

func TestRasterizer_Pages_Failure(t *testing.T) {
	runner := &fakeRunner{fail: true}
	r := NewRasterizer("", 0, nil).WithRunner(runner)

	doc := FromBytes("form.pdf", []byte("%PDF-1.4"))
	_, err := r.Pages(context.Background(), doc, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftoppm")
}

func TestSortByPageNumber(t *testing.T) {
	paths := []string{
		"/tmp/out/page-10.png",
		"/tmp/out/page-2.png",
		"/tmp/out/page-1.png",
		"/tmp/out/page-11.png",
	}
	sortByPageNumber(paths)
	assert.Equal(t, []string{
		"/tmp/out/page-1.png",
		"/tmp/out/page-2.png",
		"/tmp/out/page-10.png",
		"/tmp/out/page-11.png",
	}, paths)
}

func TestRasterizer_Pages_NumericOrder(t *testing.T) {
	runner := &fakeRunner{pages: 12}
	r := NewRasterizer("pdftoppm", 150, nil).WithRunner(runner)

	doc := FromBytes("long.pdf", []byte("%PDF-1.4"))
	pages, err := r.Pages(context.Background(), doc, 0)
	require.NoError(t, err)
	assert.Len(t, pages, 12)
}

func TestRasterizer_UnsupportedContent(t *testing.T) {
	r := NewRasterizer("", 0, nil).WithRunner(&fakeRunner{})

	doc := FromBytes("notes.txt", []byte("plain text"))
	_, err := r.FirstPage(context.Background(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}
