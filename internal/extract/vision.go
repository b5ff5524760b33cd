package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mids-neo/mnr-form-api/internal/document"
	"github.com/mids-neo/mnr-form-api/internal/mnr"
)

// gpt-4o pricing per 1K tokens; vision requests run roughly 80% input.
const (
	visionInputCostPer1K  = 0.005
	visionOutputCostPer1K = 0.015
	visionConfidence      = 0.92
)

// VisionConfig configures the vision extractor.
type VisionConfig struct {
	APIKey      string
	BaseURL     string // e.g. https://api.openai.com/v1
	Model       string // e.g. gpt-4o
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// VisionExtractor extracts form data with one vision-model chat completion
// per document.
type VisionExtractor struct {
	cfg    VisionConfig
	raster *document.Rasterizer
	client *http.Client
	log    *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewVisionExtractor builds the vision strategy. The rasterizer renders PDF
// inputs to an image before the API call.
func NewVisionExtractor(cfg VisionConfig, raster *document.Rasterizer, logger *slog.Logger) *VisionExtractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionExtractor{
		cfg:    cfg,
		raster: raster,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger,
	}
}

// WithHTTPClient swaps the HTTP client, used by tests.
func (v *VisionExtractor) WithHTTPClient(c *http.Client) *VisionExtractor {
	v.client = c
	return v
}

func (v *VisionExtractor) Method() Method { return MethodVision }

func (v *VisionExtractor) Available() (bool, string) {
	if v.cfg.APIKey == "" {
		return false, "vision API key not set"
	}
	return true, "vision extractor ready"
}

func (v *VisionExtractor) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

// Extract renders the document's first page, sends it with the fixed
// extraction prompt, and parses the JSON tree out of the response.
func (v *VisionExtractor) Extract(ctx context.Context, doc *document.Document) (*Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	v.log.Info("extract.vision.start",
		"req_id", rid,
		"doc", doc.Name,
		"model", v.cfg.Model,
	)

	res, err := v.extract(ctx, rid, doc, start)

	v.mu.Lock()
	v.stats.FormsProcessed++
	if err != nil {
		v.stats.Failures++
	} else {
		v.stats.Successes++
		v.stats.TotalCost += res.Cost
		v.stats.TotalTokens += res.Tokens
	}
	v.mu.Unlock()

	if err != nil {
		v.log.Error("extract.vision.failed",
			"req_id", rid,
			"doc", doc.Name,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return failedResult(MethodVision, time.Since(start), err), err
	}

	v.log.Info("extract.vision.ok",
		"req_id", rid,
		"doc", doc.Name,
		"tokens", res.Tokens,
		"cost_usd", res.Cost,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (v *VisionExtractor) extract(ctx context.Context, rid string, doc *document.Document, start time.Time) (*Result, error) {
	page, err := v.raster.FirstPage(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("rasterize document: %w", err)
	}
	prepared, err := document.PrepareForVision(page)
	if err != nil {
		return nil, fmt.Errorf("prepare image: %w", err)
	}

	body := map[string]any{
		"model":           v.cfg.Model,
		"max_tokens":      v.cfg.MaxTokens,
		"temperature":     v.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": extractionPrompt},
					{
						"type": "image_url",
						"image_url": map[string]any{
							"url":    document.PNGDataURL(prepared),
							"detail": "high",
						},
					},
				},
			},
		},
	}

	raw, err := v.post(ctx, strings.TrimRight(v.cfg.BaseURL, "/")+"/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("no choices in vision response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("vision model returned empty content")
	}

	fields, err := DecodeLoose(content)
	if err != nil {
		return nil, err
	}
	if err := mnr.ValidateShape(fields); err != nil {
		v.log.Warn("extract.vision.shape_mismatch", "req_id", rid, "error", err)
		return nil, err
	}

	tokens := cc.Usage.TotalTokens
	cost := v.calculateCost(tokens)
	elapsed := time.Since(start)

	fields[MetadataKey] = map[string]any{
		"method":          string(MethodVision),
		"model":           v.cfg.Model,
		"tokens_used":     tokens,
		"cost_estimate":   cost,
		"processing_time": elapsed.Seconds(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}

	return &Result{
		Success:    true,
		Fields:     fields,
		Cost:       cost,
		Tokens:     tokens,
		Elapsed:    elapsed,
		Method:     MethodVision,
		Confidence: visionConfidence,
	}, nil
}

func (v *VisionExtractor) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision http error: %w", err)
	}
	defer func(rc io.ReadCloser) {
		if err := rc.Close(); err != nil {
			v.log.Warn("vision response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vision status %d: %s", resp.StatusCode, truncateBody(raw))
	}
	return raw, nil
}

// calculateCost estimates request cost from total token usage with the
// typical 80/20 input/output split for vision requests.
func (v *VisionExtractor) calculateCost(tokens int) float64 {
	if v.cfg.Model == "gpt-4o" {
		inputTokens := float64(tokens) * 0.8
		outputTokens := float64(tokens) * 0.2
		return inputTokens/1000*visionInputCostPer1K + outputTokens/1000*visionOutputCostPer1K
	}
	return float64(tokens) / 1000 * 0.002
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}
