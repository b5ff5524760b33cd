package document

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Rasterizer renders PDF pages to PNG images through pdftoppm.
type Rasterizer struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI, default 300

	runner Runner
	logger *slog.Logger
}

// NewRasterizer returns a rasterizer backed by the real pdftoppm binary.
func NewRasterizer(pdftoppm string, dpi int, logger *slog.Logger) *Rasterizer {
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{Pdftoppm: pdftoppm, DPI: dpi, runner: execRunner{}, logger: logger}
}

// WithRunner swaps the command runner, used by tests.
func (r *Rasterizer) WithRunner(runner Runner) *Rasterizer {
	r.runner = runner
	return r
}

// FirstPage renders the first page of a PDF document to PNG bytes. Image
// documents pass through unchanged since they are already rasterized.
func (r *Rasterizer) FirstPage(ctx context.Context, doc *Document) ([]byte, error) {
	if doc.IsImage() {
		return doc.Data, nil
	}
	if !doc.IsPDF() {
		return nil, fmt.Errorf("cannot rasterize %s: unsupported content type %s", doc.Name, doc.MIME)
	}

	pages, err := r.render(ctx, doc, 1)
	if err != nil {
		return nil, err
	}
	return pages[0], nil
}

// Pages renders up to maxPages pages of a PDF to PNG bytes, in page order.
// A maxPages of zero renders every page.
func (r *Rasterizer) Pages(ctx context.Context, doc *Document, maxPages int) ([][]byte, error) {
	if doc.IsImage() {
		return [][]byte{doc.Data}, nil
	}
	if !doc.IsPDF() {
		return nil, fmt.Errorf("cannot rasterize %s: unsupported content type %s", doc.Name, doc.MIME)
	}
	return r.render(ctx, doc, maxPages)
}

func (r *Rasterizer) render(ctx context.Context, doc *Document, maxPages int) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "formpipe-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	src := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(src, doc.Data, 0o600); err != nil {
		return nil, fmt.Errorf("stage pdf for rasterization: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", fmt.Sprintf("%d", r.DPI), "-png"}
	if maxPages > 0 {
		args = append(args, "-f", "1", "-l", fmt.Sprintf("%d", maxPages))
	}
	args = append(args, src, prefix)

	// pdftoppm -r 300 -png [-f 1 -l N] <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.Pdftoppm, args...)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sortByPageNumber(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images for %s", doc.Name)
	}
	if maxPages > 0 && len(matches) > maxPages {
		matches = matches[:maxPages]
	}

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read rendered page: %w", err)
		}
		pages = append(pages, b)
	}

	r.logger.Debug("rasterized pdf", "doc", doc.Name, "pages", len(pages), "dpi", r.DPI)
	return pages, nil
}

// sortByPageNumber orders pdftoppm output files by their numeric page
// suffix. pdftoppm does not pad the page number to a fixed width in every
// case, so a lexical sort would put page-10 before page-2.
func sortByPageNumber(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		a, b := pageNumber(paths[i]), pageNumber(paths[j])
		if a != b {
			return a < b
		}
		return paths[i] < paths[j]
	})
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
