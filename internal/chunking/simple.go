package chunking

import (
	"strings"

	"github.com/alleneee/docingest/internal/model"
)

// FixedChunker slices text into fixed-size windows, ignoring
// paragraph/sentence structure except that it never splits a fenced
// code block or table row (§4.2).
type FixedChunker struct{}

func (c *FixedChunker) Chunk(text string, params model.ChunkingParams) ([]model.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	clampChunkParams(&params)

	var atoms []atom
	for _, a := range splitAtoms(text) {
		if a.atomic {
			atoms = append(atoms, a)
			continue
		}
		atoms = append(atoms, splitFixedWindows(a.text, params.ChunkSize)...)
	}
	return pack(atoms, params.ChunkSize, params.ChunkOverlap, false), nil
}

func splitFixedWindows(text string, size int) []atom {
	runes := []rune(text)
	if len(runes) <= size {
		return []atom{{text: text, boundary: model.BoundarySentence}}
	}
	var out []atom
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, atom{text: string(runes[start:end]), boundary: model.BoundarySentence})
	}
	return out
}

// SentenceChunker packs text at sentence granularity, splitting on
// English or Chinese sentence-final punctuation per params.Language
// (§4.2).
type SentenceChunker struct{}

func (c *SentenceChunker) Chunk(text string, params model.ChunkingParams) ([]model.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	clampChunkParams(&params)

	var atoms []atom
	for _, a := range splitAtoms(text) {
		atoms = append(atoms, splitSentenceAtoms(a, params.Language)...)
	}
	return pack(atoms, params.ChunkSize, params.ChunkOverlap, false), nil
}

// ParagraphChunker packs text at paragraph/list/quote granularity
// without further sentence splitting (§4.2).
type ParagraphChunker struct{}

func (c *ParagraphChunker) Chunk(text string, params model.ChunkingParams) ([]model.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	clampChunkParams(&params)
	return pack(splitAtoms(text), params.ChunkSize, params.ChunkOverlap, false), nil
}

// HierarchicalChunker packs at paragraph granularity while tracking
// the ancestor heading stack, emitting heading_path on every chunk
// (§4.2).
type HierarchicalChunker struct{}

func (c *HierarchicalChunker) Chunk(text string, params model.ChunkingParams) ([]model.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	clampChunkParams(&params)
	return pack(splitAtoms(text), params.ChunkSize, params.ChunkOverlap, true), nil
}

// CodeAwareChunker packs source text at paragraph granularity; fenced
// code blocks are already atomic in splitAtoms, so a block larger than
// chunk_size is emitted standalone with oversized=true instead of
// being split mid-function (§4.2).
type CodeAwareChunker struct{}

func (c *CodeAwareChunker) Chunk(text string, params model.ChunkingParams) ([]model.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	clampChunkParams(&params)
	chunks := pack(splitAtoms(text), params.ChunkSize, params.ChunkOverlap, false)
	for i := range chunks {
		if chunks[i].Boundary == model.BoundaryCodeBlock {
			chunks[i].HeadingPath = nil
		}
	}
	return chunks, nil
}

// TableAwareChunker packs tabular text at paragraph granularity;
// contiguous table-row runs are atomic in splitAtoms and are never
// split mid-row (§4.2).
type TableAwareChunker struct{}

func (c *TableAwareChunker) Chunk(text string, params model.ChunkingParams) ([]model.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	clampChunkParams(&params)
	return pack(splitAtoms(text), params.ChunkSize, params.ChunkOverlap, false), nil
}
