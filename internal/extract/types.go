// Package extract pulls structured intake form data out of scanned
// documents. Two strategies exist: a vision model call and a legacy
// OCR-plus-regex path, coordinated by an Orchestrator with fallback.
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/mids-neo/mnr-form-api/internal/document"
	"github.com/mids-neo/mnr-form-api/internal/mnr"
)

// Method identifies how a form tree was produced.
type Method string

const (
	MethodVision    Method = "vision"
	MethodLegacyOCR Method = "legacy_ocr"
	MethodCached    Method = "cached"
	// MethodSample is recognized for artifacts written by older versions
	// but is never produced anymore.
	MethodSample    Method = "sample"
	MethodAllFailed Method = "all_failed"
)

// MetadataKey holds extraction provenance inside the extracted tree.
const MetadataKey = "_extraction_metadata"

// ErrNoExtractors means the orchestrator was built with zero usable
// strategies; the pipeline cannot run at all.
var ErrNoExtractors = errors.New("no extraction strategies available")

// Result is the outcome of one extraction attempt.
type Result struct {
	Success    bool
	Fields     mnr.Form
	Cost       float64 // USD estimate, zero for non-API methods
	Tokens     int
	Elapsed    time.Duration
	Method     Method
	Confidence float64
	Err        string // failure description when Success is false
}

// Stats is a running tally per extractor.
type Stats struct {
	FormsProcessed int
	Successes      int
	Failures       int
	TotalCost      float64
	TotalTokens    int
}

// Extractor is a single extraction strategy.
type Extractor interface {
	// Method identifies the strategy.
	Method() Method
	// Available reports whether the strategy can run and why not.
	Available() (bool, string)
	// Extract produces a form tree from a document. A returned error means
	// the attempt failed and a fallback may run.
	Extract(ctx context.Context, doc *document.Document) (*Result, error)
	// Stats returns the running tally for this extractor.
	Stats() Stats
}

func failedResult(method Method, elapsed time.Duration, err error) *Result {
	return &Result{
		Success: false,
		Method:  method,
		Elapsed: elapsed,
		Err:     err.Error(),
	}
}
