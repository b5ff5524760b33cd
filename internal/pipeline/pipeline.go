// Package pipeline sequences extraction, normalization/mapping, and PDF
// filling into one run, tracking partial progress and deciding
// success/failure per stage.
package pipeline

import (
	"errors"
	"time"

	"github.com/mids-neo/mnr-form-api/internal/extract"
	"github.com/mids-neo/mnr-form-api/internal/fill"
	"github.com/mids-neo/mnr-form-api/internal/mnr"
)

// Stage names one step of the pipeline state machine. Failed is absorbing;
// every other stage only advances when its predecessor succeeded.
type Stage string

const (
	StageExtraction   Stage = "extraction"
	StageMapping      Stage = "mapping"
	StageFilling      Stage = "filling"
	StageFinalization Stage = "finalization"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// ErrTemplateMissing reports that a required PDF template could not be
// found. Checked eagerly, before any stage runs.
var ErrTemplateMissing = errors.New("template not found")

// Observer receives progress events during a run. Implementations must be
// safe for calls from concurrent fill goroutines in dual-format mode.
type Observer interface {
	// OnProgress fires at entry and completion of each stage.
	OnProgress(stage Stage, message string, completed bool, details map[string]any)
	// OnError fires once, with the failing stage, when the run fails.
	OnError(stage Stage, err error)
}

// notifier wraps an Observer so a nil observer is a silent no-op.
type notifier struct {
	obs Observer
}

func (n notifier) progress(stage Stage, message string, completed bool, details map[string]any) {
	if n.obs != nil {
		n.obs.OnProgress(stage, message, completed, details)
	}
}

func (n notifier) failure(stage Stage, err error) {
	if n.obs != nil {
		n.obs.OnError(stage, err)
	}
}

// FormatOutput is the per-format outcome of the mapping and filling stages.
type FormatOutput struct {
	Format       string         `json:"format"`
	Normalized   mnr.Form       `json:"-"`
	Mapped       map[string]any `json:"-"`
	Filling      *fill.Result   `json:"filling,omitempty"`
	Intermediate string         `json:"intermediate_json,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// Result aggregates one run of the pipeline.
type Result struct {
	Success      bool   `json:"success"`
	StageReached Stage  `json:"stage_reached"`
	InputName    string `json:"input_name,omitempty"`

	Extraction *extract.Result `json:"extraction,omitempty"`

	// Primary is the requested format's outcome; in dual-format mode it is
	// the target (ASH) form and Secondary carries the source-format (MNR)
	// render.
	Primary   *FormatOutput `json:"primary,omitempty"`
	Secondary *FormatOutput `json:"secondary,omitempty"`

	FieldsExtracted int           `json:"fields_extracted"`
	FieldsFilled    int           `json:"fields_filled"`
	TotalCost       float64       `json:"total_cost"`
	Elapsed         time.Duration `json:"-"`

	Err      string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	Metadata map[string]any `json:"pipeline_metadata,omitempty"`
}

func (r *Result) fail(stage Stage, err error) *Result {
	r.Success = false
	r.StageReached = StageFailed
	r.Err = string(stage) + ": " + err.Error()
	return r
}
