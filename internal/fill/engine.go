package fill

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type attemptFunc func(data Values, fm *FieldMap, template []byte, out io.Writer, warn func(string)) (filled, total int, err error)

type attempt struct {
	method Method
	run    attemptFunc
}

// Engine fills one template with a fixed method cascade: first success
// wins, failed attempts contribute warnings. Enhanced mode prefers the
// strict structured method; without it the loose label matcher goes first.
type Engine struct {
	template []byte
	fieldMap *FieldMap
	log      *slog.Logger
	attempts []attempt
}

// NewEngine builds the template's field map and fixes the cascade order.
func NewEngine(template []byte, table Table, enhanced bool, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fm, err := BuildFieldMap(template, table, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build field map: %w", err)
	}

	e := &Engine{
		template: template,
		fieldMap: fm,
		log:      logger,
	}

	structured := attempt{MethodStructured, fillStructured}
	basic := attempt{MethodBasic, fillBasic}
	overlay := attempt{MethodOverlay, fillOverlay}
	if enhanced {
		e.attempts = []attempt{structured, basic, overlay}
	} else {
		e.attempts = []attempt{basic, structured, overlay}
	}
	return e, nil
}

// FieldMap exposes the validated mapping for diagnostics.
func (e *Engine) FieldMap() *FieldMap {
	return e.fieldMap
}

// Fill writes the values onto the template and saves the result. Methods
// are tried in cascade order; a later method never runs after an earlier
// success.
func (e *Engine) Fill(data Values, outputPath string) Result {
	start := time.Now()
	var warnings []string
	warn := func(msg string) { warnings = append(warnings, msg) }

	for _, a := range e.attempts {
		var buf bytes.Buffer
		filled, total, err := a.run(data, e.fieldMap, e.template, &buf, warn)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("method %s failed: %v", a.method, err))
			e.log.Warn("fill.method.failed", "method", a.method, "error", err)
			continue
		}

		if err := writeOutput(outputPath, buf.Bytes()); err != nil {
			return Result{
				Method:   a.method,
				Warnings: warnings,
				Elapsed:  time.Since(start),
				Err:      err.Error(),
			}
		}

		e.log.Info("fill.ok",
			"method", a.method,
			"fields_filled", filled,
			"total_fields", total,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Result{
			Success:      true,
			OutputPath:   outputPath,
			FieldsFilled: filled,
			TotalFields:  total,
			Method:       a.method,
			Warnings:     warnings,
			Elapsed:      time.Since(start),
		}
	}

	e.log.Error("fill.all_failed", "warnings", len(warnings))
	return Result{
		Method:   MethodAllFailed,
		Warnings: warnings,
		Elapsed:  time.Since(start),
		Err:      ErrAllMethodsFailed.Error(),
	}
}

func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
