package pipeline

import (
	"context"
	"fmt"

	"github.com/alleneee/docingest/internal/model"
)

// StageError surfaces the first pipeline failure with the stage name
// attached, and the offending ordinal when the failing processor knows
// one (§4.5: "attaching the stage name and, when applicable, the
// offending segment/chunk ordinal").
type StageError struct {
	Stage      Stage
	Ordinal    int
	HasOrdinal bool
	Err        error
}

func (e *StageError) Error() string {
	if e.HasOrdinal {
		return fmt.Sprintf("pipeline stage %s (ordinal %d): %v", e.Stage, e.Ordinal, e.Err)
	}
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// OrdinalError lets a Processor attach the chunk/segment ordinal it was
// working on when it failed; the engine lifts it into a StageError.
type OrdinalError struct {
	Ordinal int
	Err     error
}

func (e *OrdinalError) Error() string { return e.Err.Error() }
func (e *OrdinalError) Unwrap() error { return e.Err }

// Engine runs a Context through the fixed stage order of §4.5,
// selecting one Processor per stage from the Registry by the
// document's file_type, and writing final Document/DocumentState via
// the state store in the Finalize stage.
type Engine struct {
	registry *Registry
}

// NewEngine builds an Engine bound to a Registry. The Finalize stage's
// own Processor (see processors.go) holds the state-store handles it
// writes through; the Engine itself stays storage-agnostic.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// Run executes every stage in order for pc, stopping at the first
// failure. MarkdownNormalize is skipped unless the plan requests it
// (§4.5: "(optional) MarkdownNormalize").
func (e *Engine) Run(ctx context.Context, pc *Context) error {
	for _, stage := range stageOrder {
		if stage == StageMarkdownNormalize && !pc.Plan.ConvertToMarkdown {
			continue
		}

		proc := e.registry.Select(stage, pc.FileType)
		if proc == nil {
			return &StageError{Stage: stage, Err: fmt.Errorf("%w: no processor registered for stage %s, file_type %s", model.ErrValidation, stage, pc.FileType)}
		}

		pc.Stage = stage
		if err := proc.Process(ctx, pc); err != nil {
			var oe *OrdinalError
			if asOrdinalError(err, &oe) {
				return &StageError{Stage: stage, Ordinal: oe.Ordinal, HasOrdinal: true, Err: oe.Err}
			}
			return &StageError{Stage: stage, Err: err}
		}
	}
	return nil
}

func asOrdinalError(err error, target **OrdinalError) bool {
	oe, ok := err.(*OrdinalError)
	if ok {
		*target = oe
	}
	return ok
}
