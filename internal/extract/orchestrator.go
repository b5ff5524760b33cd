package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mids-neo/mnr-form-api/internal/document"
)

// MethodAuto selects the preferred available strategy at call time.
const MethodAuto Method = "auto"

// Orchestrator coordinates the registered extraction strategies with
// optional fallback. It fails fast at construction when no strategy exists
// rather than at the first document.
type Orchestrator struct {
	extractors map[Method]Extractor
	order      []Method // preference order for auto selection
	log        *slog.Logger
}

// NewOrchestrator registers the given strategies in preference order. At
// least one must be provided.
func NewOrchestrator(logger *slog.Logger, extractors ...Extractor) (*Orchestrator, error) {
	if len(extractors) == 0 {
		return nil, ErrNoExtractors
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		extractors: make(map[Method]Extractor, len(extractors)),
		log:        logger,
	}
	for _, e := range extractors {
		if _, dup := o.extractors[e.Method()]; dup {
			return nil, fmt.Errorf("duplicate extraction strategy: %s", e.Method())
		}
		o.extractors[e.Method()] = e
		o.order = append(o.order, e.Method())

		if ok, status := e.Available(); ok {
			logger.Info("extract.strategy.registered", "method", e.Method(), "status", status)
		} else {
			logger.Warn("extract.strategy.unavailable", "method", e.Method(), "status", status)
		}
	}
	return o, nil
}

// Extract runs the requested strategy, falling back to the other registered
// strategies when allowed. All strategies failing yields a MethodAllFailed
// result together with the last error.
func (o *Orchestrator) Extract(ctx context.Context, doc *document.Document, method Method, fallback bool) (*Result, error) {
	primary := method
	if primary == MethodAuto || primary == "" {
		primary = o.autoSelect()
	}

	o.log.Info("extract.orchestrator.start",
		"doc", doc.Name, "method", primary, "fallback", fallback)

	var lastErr error

	if e, ok := o.extractors[primary]; ok {
		res, err := e.Extract(ctx, doc)
		if err == nil && res.Success {
			return res, nil
		}
		lastErr = err
		if !fallback {
			return res, err
		}
		o.log.Warn("extract.orchestrator.primary_failed",
			"doc", doc.Name, "method", primary, "error", err)
	} else if !fallback {
		return failedResult(MethodAllFailed, 0, fmt.Errorf("unknown extraction method: %s", primary)),
			fmt.Errorf("unknown extraction method: %s", primary)
	}

	for _, m := range o.order {
		if m == primary {
			continue
		}
		o.log.Info("extract.orchestrator.fallback", "doc", doc.Name, "method", m)
		res, err := o.extractors[m].Extract(ctx, doc)
		if err == nil && res.Success {
			return res, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("all extraction methods failed")
	}
	o.log.Error("extract.orchestrator.all_failed", "doc", doc.Name, "error", lastErr)
	return failedResult(MethodAllFailed, 0, fmt.Errorf("all extraction methods failed: %w", lastErr)), lastErr
}

// autoSelect prefers the first registered strategy that reports available,
// then falls back to registration order.
func (o *Orchestrator) autoSelect() Method {
	for _, m := range o.order {
		if ok, _ := o.extractors[m].Available(); ok {
			return m
		}
	}
	return o.order[0]
}

// Methods describes the registered strategies and their availability.
func (o *Orchestrator) Methods() map[Method]string {
	out := make(map[Method]string, len(o.extractors))
	for m, e := range o.extractors {
		_, status := e.Available()
		out[m] = status
	}
	return out
}

// Stats returns the running tallies of every registered extractor.
func (o *Orchestrator) Stats() map[Method]Stats {
	out := make(map[Method]Stats, len(o.extractors))
	for m, e := range o.extractors {
		out[m] = e.Stats()
	}
	return out
}
