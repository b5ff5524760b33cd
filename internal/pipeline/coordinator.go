package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mids-neo/mnr-form-api/internal/ash"
	"github.com/mids-neo/mnr-form-api/internal/cache"
	"github.com/mids-neo/mnr-form-api/internal/config"
	"github.com/mids-neo/mnr-form-api/internal/document"
	"github.com/mids-neo/mnr-form-api/internal/extract"
	"github.com/mids-neo/mnr-form-api/internal/fill"
	"github.com/mids-neo/mnr-form-api/internal/mnr"
)

// Template filenames looked up under the configured template directory.
const (
	TemplateASH = "ash_medical_form.pdf"
	TemplateMNR = "mnr_form.pdf"
)

// Coordinator drives the extraction, mapping, and filling stages for one
// document at a time. It is the only component aware of all stages; data
// flows strictly downstream through it.
type Coordinator struct {
	cfg          *config.Config
	orchestrator *extract.Orchestrator
	store        *cache.Store
	log          *slog.Logger
}

// New wires a coordinator from its injected collaborators.
func New(cfg *config.Config, orchestrator *extract.Orchestrator, store *cache.Store, logger *slog.Logger) (*Coordinator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("extraction orchestrator is required")
	}
	if store == nil {
		store = cache.NewStore(time.Duration(cfg.CacheTTLMin) * time.Minute)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		log:          logger,
	}, nil
}

// Process runs the full pipeline for one document. The session token is
// carried verbatim into progress details and result metadata; no
// authorization happens here. A nil observer disables progress events.
func (c *Coordinator) Process(ctx context.Context, doc *document.Document, session string, obs Observer) *Result {
	start := time.Now()
	n := notifier{obs}
	reqID := uuid.NewString()
	log := c.log.With("req_id", reqID[:8], "doc", doc.Name)

	result := &Result{
		StageReached: StageExtraction,
		InputName:    doc.Name,
	}

	formats := c.requestedFormats()

	// Templates are a hard precondition; missing ones fail the run before
	// any paid extraction work starts.
	templates := make(map[string][]byte, len(formats))
	for _, format := range formats {
		data, err := c.loadTemplate(format)
		if err != nil {
			n.failure(StageExtraction, err)
			log.Error("pipeline.template.missing", "format", format, "error", err)
			return result.fail(StageExtraction, err)
		}
		templates[format] = data
	}

	log.Info("pipeline.start",
		"format", c.cfg.OutputFormat,
		"method", c.cfg.ExtractionMethod,
		"size", len(doc.Data))

	// Stage 1: extraction.
	n.progress(StageExtraction, fmt.Sprintf("Extracting form data (%s)", c.cfg.ExtractionMethod), false,
		map[string]any{"method": c.cfg.ExtractionMethod, "session": session})

	extraction, err := c.extract(ctx, doc)
	result.Extraction = extraction
	if extraction != nil {
		result.TotalCost += extraction.Cost
	}
	if err != nil || extraction == nil || !extraction.Success {
		if err == nil {
			err = fmt.Errorf("extraction failed: %s", extraction.Err)
		}
		n.failure(StageExtraction, err)
		log.Error("pipeline.extraction.failed", "error", err)
		return finalize(c, result.fail(StageExtraction, err), start, session)
	}
	result.FieldsExtracted = len(extraction.Fields)

	n.progress(StageExtraction, fmt.Sprintf("Extracted %d fields", result.FieldsExtracted), true,
		map[string]any{
			"method":     string(extraction.Method),
			"cost":       extraction.Cost,
			"confidence": extraction.Confidence,
			"session":    session,
		})
	log.Info("pipeline.extraction.ok",
		"method", extraction.Method,
		"fields", result.FieldsExtracted,
		"cost", extraction.Cost)

	// Stages 2+3: mapping and filling, once per requested format. The
	// dual-format fan-out shares the single extraction result read-only;
	// each chain writes its own output file.
	outputs := make([]*FormatOutput, len(formats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, format := range formats {
		g.Go(func() error {
			outputs[i] = c.runFormat(gctx, format, doc, extraction.Fields, templates[format], session, n, log)
			return nil
		})
	}
	_ = g.Wait()

	result.StageReached = StageMapping
	for _, out := range outputs {
		result.Warnings = append(result.Warnings, out.Warnings...)
	}
	result.Primary = outputs[0]
	if len(outputs) > 1 {
		result.Secondary = outputs[1]
	}

	for _, out := range outputs {
		if out.Filling == nil || !out.Filling.Success {
			err := fmt.Errorf("filling failed for %s format", out.Format)
			if out.Filling != nil && out.Filling.Err != "" {
				err = fmt.Errorf("filling failed for %s format: %s", out.Format, out.Filling.Err)
			}
			n.failure(StageFilling, err)
			log.Error("pipeline.filling.failed", "format", out.Format, "error", err)
			return finalize(c, result.fail(StageFilling, err), start, session)
		}
		result.FieldsFilled += out.Filling.FieldsFilled
	}

	result.Success = true
	result.StageReached = StageCompleted

	n.progress(StageFinalization, "Finalizing result", false, map[string]any{"session": session})
	result = finalize(c, result, start, session)
	n.progress(StageFinalization, "Finalization completed", true, map[string]any{"session": session})

	n.progress(StageCompleted, "Pipeline completed", true, map[string]any{
		"fields_extracted": result.FieldsExtracted,
		"fields_filled":    result.FieldsFilled,
		"total_cost":       result.TotalCost,
		"session":          session,
	})
	log.Info("pipeline.ok",
		"fields_extracted", result.FieldsExtracted,
		"fields_filled", result.FieldsFilled,
		"cost", result.TotalCost,
		"elapsed_ms", time.Since(start).Milliseconds())

	return result
}

// extract consults the cache first, then runs the orchestrator and caches
// a success. Cache keys pair the document content hash with the requested
// method, so identical bytes across requests share one extraction.
func (c *Coordinator) extract(ctx context.Context, doc *document.Document) (*extract.Result, error) {
	method := extract.Method(c.cfg.ExtractionMethod)
	hash := doc.Hash()

	if cached, ok := c.store.GetResult(hash, method); ok {
		c.log.Info("pipeline.extraction.cached", "hash", hash[:12])
		hit := *cached
		hit.Method = extract.MethodCached
		hit.Cost = 0
		return &hit, nil
	}

	result, err := c.orchestrator.Extract(ctx, doc, method, c.cfg.Fallback)
	if err != nil {
		return result, err
	}
	c.store.PutResult(hash, method, result)
	return result, nil
}

// runFormat executes the mapping and filling stages for one output format.
// Failures surface in the returned FormatOutput, not as an error, so the
// dual-format case keeps both outcomes.
func (c *Coordinator) runFormat(ctx context.Context, format string, doc *document.Document, fields mnr.Form, template []byte, session string, n notifier, log *slog.Logger) *FormatOutput {
	out := &FormatOutput{Format: format}

	n.progress(StageMapping, fmt.Sprintf("Normalizing data (%s)", format), false,
		map[string]any{"format": format, "session": session})

	normalized, ok := mnr.Process(fields)
	out.Normalized = normalized
	if !ok {
		// Required-field misses degrade to warnings; partial data still
		// produces a reviewable form.
		out.Warnings = append(out.Warnings, provenanceIssues(normalized)...)
	}

	var values fill.Values
	var table fill.Table
	if format == config.FormatASH {
		out.Mapped = ash.Map(normalized)
		values = fill.ValuesFrom(out.Mapped)
		table = fill.ASHTable()
	} else {
		values = fill.Values(mnr.DisplayValues(normalized))
		table = fill.MNRTable()
	}

	if c.cfg.SaveIntermediate {
		path, err := c.saveIntermediate(doc, format, normalized, out.Mapped)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("intermediate save failed: %v", err))
		} else {
			out.Intermediate = path
		}
	}

	n.progress(StageMapping, fmt.Sprintf("Mapped %d values (%s)", len(values), format), true,
		map[string]any{"format": format, "values": len(values), "session": session})
	log.Info("pipeline.mapping.ok", "format", format, "values", len(values))

	if ctx.Err() != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("filling skipped: %v", ctx.Err()))
		return out
	}

	n.progress(StageFilling, fmt.Sprintf("Filling %s PDF", format), false,
		map[string]any{"format": format, "session": session})

	engine, err := fill.NewEngine(template, table, c.cfg.EnhancedFilling, log)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("fill engine init failed: %v", err))
		return out
	}

	outputPath := filepath.Join(c.cfg.OutputDirectory,
		fmt.Sprintf("%s_%s_filled_%s.pdf", doc.BaseName(), format, uuid.NewString()[:8]))
	fillResult := engine.Fill(values, outputPath)
	out.Filling = &fillResult
	out.Warnings = append(out.Warnings, fillResult.Warnings...)

	if fillResult.Success {
		n.progress(StageFilling, fmt.Sprintf("Filled %d fields (%s)", fillResult.FieldsFilled, format), true,
			map[string]any{
				"format":       format,
				"method":       string(fillResult.Method),
				"fields":       fillResult.FieldsFilled,
				"output_path":  fillResult.OutputPath,
				"session":      session,
			})
	}
	return out
}

// requestedFormats orders dual-format runs target-first so Result.Primary
// is always the ASH render when both are requested.
func (c *Coordinator) requestedFormats() []string {
	switch c.cfg.OutputFormat {
	case config.FormatBoth:
		return []string{config.FormatASH, config.FormatMNR}
	case config.FormatASH:
		return []string{config.FormatASH}
	default:
		return []string{config.FormatMNR}
	}
}

func (c *Coordinator) loadTemplate(format string) ([]byte, error) {
	name := TemplateMNR
	if format == config.FormatASH {
		name = TemplateASH
	}
	path := filepath.Join(c.cfg.TemplateDirectory, name)

	if data, ok := c.store.GetTemplate(path); ok {
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, path)
	}
	c.store.PutTemplate(path, data)
	return data, nil
}

func (c *Coordinator) saveIntermediate(doc *document.Document, format string, normalized mnr.Form, mapped map[string]any) (string, error) {
	payload := any(normalized)
	if mapped != nil {
		payload = mapped
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(c.cfg.OutputDirectory,
		fmt.Sprintf("%s_%s_processed_%s.json", doc.BaseName(), format, uuid.NewString()[:8]))
	if err := os.MkdirAll(c.cfg.OutputDirectory, config.DefaultDirPerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// provenanceIssues pulls the validator's issue list out of a normalized
// form's provenance block.
func provenanceIssues(form mnr.Form) []string {
	prov, ok := form[mnr.ProvenanceKey].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := prov["issues"].([]string)
	if ok {
		return raw
	}
	if anyIssues, ok := prov["issues"].([]any); ok {
		issues := make([]string, 0, len(anyIssues))
		for _, v := range anyIssues {
			if s, ok := v.(string); ok {
				issues = append(issues, s)
			}
		}
		return issues
	}
	return nil
}

// finalize stamps timing and metadata on a result before returning it.
func finalize(c *Coordinator, result *Result, start time.Time, session string) *Result {
	result.Elapsed = time.Since(start)

	if c.cfg.IncludeMetadata {
		methods := make(map[string]string)
		for m, status := range c.orchestrator.Methods() {
			methods[string(m)] = status
		}
		result.Metadata = map[string]any{
			"pipeline_version":    c.cfg.Version,
			"execution_timestamp": time.Now().UTC().Format(time.RFC3339),
			"stage_reached":       string(result.StageReached),
			"output_format":       c.cfg.OutputFormat,
			"extraction_methods":  methods,
			"session":             session,
		}
	}
	return result
}

// Status reports the pipeline's current capabilities.
func (c *Coordinator) Status() map[string]any {
	methods := make(map[string]string)
	for m, status := range c.orchestrator.Methods() {
		methods[string(m)] = status
	}

	templates := make(map[string]bool, 2)
	for _, format := range []string{config.FormatMNR, config.FormatASH} {
		_, err := c.loadTemplate(format)
		templates[format] = err == nil
	}

	return map[string]any{
		"pipeline_ready":     true,
		"extraction_methods": methods,
		"output_formats":     []string{config.FormatMNR, config.FormatASH, config.FormatBoth},
		"templates":          templates,
		"cache":              c.store.Stats(),
	}
}

// Stats reports per-component counters.
func (c *Coordinator) Stats() map[string]any {
	extractionStats := make(map[string]extract.Stats)
	for m, s := range c.orchestrator.Stats() {
		extractionStats[string(m)] = s
	}
	return map[string]any{
		"extraction": extractionStats,
		"cache":      c.store.Stats(),
	}
}
