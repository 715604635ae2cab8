package chunking

import (
	"strings"

	"github.com/alleneee/docingest/internal/model"
)

// SemanticChunker implements the `semantic` kind: §4.1 defines it as
// the sentence/paragraph-aware fallback used when no stronger
// structural signal (markdown headings, code, tables) applies. It
// packs whole paragraphs when they fit within chunk_size and falls
// back to sentence-level splitting only for paragraphs that would
// otherwise overflow, so a chunk boundary prefers the highest-priority
// candidate that fits (PARAGRAPH=0.8 over SENTENCE=0.5), per §4.2.
//
// The teacher's pkg/chunking/semantic.go instead merges chunks by
// embedding cosine similarity; that isn't carried over here because
// §4.2 requires every chunker to be a pure (text, params) function
// with no external collaborator, which an embedding call would
// violate.
type SemanticChunker struct{}

func (c *SemanticChunker) Chunk(text string, params model.ChunkingParams) ([]model.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	clampChunkParams(&params)

	var atoms []atom
	for _, a := range splitAtoms(text) {
		if a.atomic || len(a.text) <= params.ChunkSize {
			atoms = append(atoms, a)
			continue
		}
		atoms = append(atoms, splitSentenceAtoms(a, params.Language)...)
	}
	return pack(atoms, params.ChunkSize, params.ChunkOverlap, false), nil
}
