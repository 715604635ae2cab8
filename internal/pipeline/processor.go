package pipeline

import (
	"context"

	"github.com/alleneee/docingest/internal/model"
)

// Processor is one named unit of work a Stage can run. Replacing the
// source's decorator+reflection registration (§9), a Processor
// declares its supported file types as plain data a Registry can
// inspect at startup, with no runtime type introspection involved.
type Processor interface {
	Name() string
	SupportedFileTypes() []model.FileType
	Process(ctx context.Context, pc *Context) error
}

// supports reports whether p is eligible for fileType; an empty
// SupportedFileTypes list means "all file types".
func supports(p Processor, fileType model.FileType) bool {
	types := p.SupportedFileTypes()
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == fileType {
			return true
		}
	}
	return false
}

// Registry maps each Stage to the ordered Processors eligible to run
// there; the engine picks the first one whose SupportedFileTypes
// matches the document's file_type.
type Registry struct {
	byStage map[Stage][]Processor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byStage: make(map[Stage][]Processor)}
}

// Register adds p as a candidate for stage. Later registrations for
// the same stage are tried after earlier ones.
func (r *Registry) Register(stage Stage, p Processor) {
	r.byStage[stage] = append(r.byStage[stage], p)
}

// Select returns the first Processor registered for stage that
// supports fileType, or nil if none matches.
func (r *Registry) Select(stage Stage, fileType model.FileType) Processor {
	for _, p := range r.byStage[stage] {
		if supports(p, fileType) {
			return p
		}
	}
	return nil
}
