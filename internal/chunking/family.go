// Package chunking implements the Chunker Family (C3): pure functions
// from (text, params) to an ordered list of (text, boundary_metadata)
// chunks, dispatched by ChunkingKind (§4.2).
package chunking

import (
	"fmt"

	"github.com/alleneee/docingest/internal/model"
)

// Chunker is one member of the family: a pure function from raw text
// and chunking parameters to ordered chunks.
type Chunker interface {
	Chunk(text string, params model.ChunkingParams) ([]model.Chunk, error)
}

// Family dispatches to the chunker registered for a ChunkingKind.
type Family struct {
	members map[model.ChunkingKind]Chunker
}

// NewFamily builds the family with one member per ChunkingKind this
// core supports. Every member is a pure (text, params) → chunks
// function per §4.2; none calls the embedder or any other external
// collaborator.
func NewFamily() *Family {
	semantic := &SemanticChunker{}
	members := map[model.ChunkingKind]Chunker{
		model.ChunkingFixed:        &FixedChunker{},
		model.ChunkingSentence:     &SentenceChunker{},
		model.ChunkingParagraph:    &ParagraphChunker{},
		model.ChunkingSemantic:     semantic,
		model.ChunkingHierarchical: &HierarchicalChunker{},
		model.ChunkingRecursiveMD:  &MarkdownChunker{},
		model.ChunkingCodeAware:    &CodeAwareChunker{},
		model.ChunkingTableAware:   &TableAwareChunker{},
		// Coarse executor-facing boundary modes (§4.6 step 1).
		model.ChunkingSentenceBoundary: &SentenceChunker{},
		model.ChunkingSemanticBoundary: semantic,
	}
	return &Family{members: members}
}

// Chunk dispatches to the member registered for params.Kind.
func (f *Family) Chunk(text string, params model.ChunkingParams) ([]model.Chunk, error) {
	member, ok := f.members[params.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown chunking kind %q", model.ErrValidation, params.Kind)
	}
	return member.Chunk(text, params)
}

func clampChunkParams(params *model.ChunkingParams) {
	if params.ChunkSize <= 0 {
		params.ChunkSize = 1000
	}
	if params.ChunkOverlap < 0 || params.ChunkOverlap >= params.ChunkSize {
		params.ChunkOverlap = params.ChunkSize / 10
	}
}
