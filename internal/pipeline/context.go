// Package pipeline implements the Pipeline Engine (C6): a typed
// per-document context carried by exclusive handoff between an ordered
// list of processors (§4.5).
package pipeline

import (
	"time"

	"github.com/alleneee/docingest/internal/model"
)

// Stage names the fixed order C6 enforces (§4.5). Stage is a typed
// enum rather than a bare string so a misspelled stage name is a
// compile error, not a silent no-op registration.
type Stage string

const (
	StageValidate           Stage = "validate"
	StageMarkdownNormalize  Stage = "markdown_normalize"
	StageChunk              Stage = "chunk"
	StageEmbed              Stage = "embed"
	StageIndex              Stage = "index"
	StageFinalize           Stage = "finalize"
)

// stageOrder is the fixed sequence §4.5 names; MarkdownNormalize is
// skipped when the Context's ProcessingPlan does not request it.
var stageOrder = []Stage{
	StageValidate,
	StageMarkdownNormalize,
	StageChunk,
	StageEmbed,
	StageIndex,
	StageFinalize,
}

// Context is the mutable record passed by exclusive handoff between
// stages (§3, §9): a typed record with optional fields recovers the
// teacher's untyped-map flexibility without losing compile-time safety
// the source's map[string]any context gave up.
type Context struct {
	DocID      string
	SourcePath string
	FileType   model.FileType
	Metadata   map[string]any

	RawContent []byte
	Text       string

	Features model.DocumentFeatures
	Plan     model.ProcessingPlan

	Chunks    []model.Chunk
	Nodes     []model.Node
	NodeCount int

	StartedAt time.Time
	Stage     Stage
}
