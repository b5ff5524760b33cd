package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mids-neo/mnr-form-api/internal/document"
)

const legacyConfidence = 0.52

// LegacyConfig configures the OCR fallback strategy.
type LegacyConfig struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Lang      string // default "eng"
	PSM       int    // default 6, uniform block of text
	OEM       int    // default 3
}

// LegacyExtractor extracts form data by running tesseract over the
// rasterized scan and applying fixed per-field regex rules. Considerably
// less accurate than the vision path; it exists so the pipeline still
// functions without API access.
type LegacyExtractor struct {
	cfg    LegacyConfig
	raster *document.Rasterizer
	runner document.Runner
	log    *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewLegacyExtractor builds the OCR strategy.
func NewLegacyExtractor(cfg LegacyConfig, raster *document.Rasterizer, logger *slog.Logger) *LegacyExtractor {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LegacyExtractor{
		cfg:    cfg,
		raster: raster,
		runner: document.ExecRunner(),
		log:    logger,
	}
}

// WithRunner swaps the command runner, used by tests.
func (l *LegacyExtractor) WithRunner(r document.Runner) *LegacyExtractor {
	l.runner = r
	return l
}

func (l *LegacyExtractor) Method() Method { return MethodLegacyOCR }

func (l *LegacyExtractor) Available() (bool, string) {
	_, _, err := l.runner.Run(context.Background(), l.cfg.Tesseract, "--version")
	if err != nil {
		return false, fmt.Sprintf("tesseract not available: %v", err)
	}
	return true, "legacy OCR extractor ready"
}

func (l *LegacyExtractor) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Extract OCRs the first page and parses the text with regex rules. Empty
// OCR output is a failure; the caller decides whether another strategy runs.
func (l *LegacyExtractor) Extract(ctx context.Context, doc *document.Document) (*Result, error) {
	start := time.Now()

	l.log.Info("extract.legacy.start", "doc", doc.Name)

	text, err := l.ocrText(ctx, doc)

	l.mu.Lock()
	l.stats.FormsProcessed++
	if err != nil || strings.TrimSpace(text) == "" {
		l.stats.Failures++
	} else {
		l.stats.Successes++
	}
	l.mu.Unlock()

	if err != nil {
		l.log.Error("extract.legacy.failed", "doc", doc.Name, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return failedResult(MethodLegacyOCR, time.Since(start), err), err
	}
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("ocr produced no text for %s", doc.Name)
		l.log.Error("extract.legacy.empty", "doc", doc.Name)
		return failedResult(MethodLegacyOCR, time.Since(start), err), err
	}

	fields := ParseFormText(text)
	elapsed := time.Since(start)

	fields[MetadataKey] = map[string]any{
		"method":          string(MethodLegacyOCR),
		"processing_time": elapsed.Seconds(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"ocr_text_length": len(text),
	}

	l.log.Info("extract.legacy.ok", "doc", doc.Name,
		"text_len", len(text),
		"fields", len(fields),
		"elapsed_ms", elapsed.Milliseconds())

	return &Result{
		Success:    true,
		Fields:     fields,
		Elapsed:    elapsed,
		Method:     MethodLegacyOCR,
		Confidence: legacyConfidence,
	}, nil
}

func (l *LegacyExtractor) ocrText(ctx context.Context, doc *document.Document) (string, error) {
	page, err := l.raster.FirstPage(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("rasterize document: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "formpipe-ocr-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			l.log.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	img := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(img, page, 0o600); err != nil {
		return "", fmt.Errorf("stage page for ocr: %w", err)
	}

	// tesseract <file> stdout -l eng --oem 3 --psm 6
	args := []string{img, "stdout", "-l", l.cfg.Lang,
		"--oem", fmt.Sprintf("%d", l.cfg.OEM),
		"--psm", fmt.Sprintf("%d", l.cfg.PSM)}
	out, errb, err := l.runner.Run(ctx, l.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncateBody(errb))
	}
	return string(out), nil
}
