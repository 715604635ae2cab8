package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alleneee/docingest/internal/chunking"
	"github.com/alleneee/docingest/internal/clients/embedding"
	"github.com/alleneee/docingest/internal/clients/markdownconv"
	"github.com/alleneee/docingest/internal/hashing"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/state"
	"github.com/alleneee/docingest/internal/vectorstore"
)

// ValidateProcessor rejects empty input and unsupported file types
// before any real work starts (§7 ValidationError: "unsupported file
// type, empty file, malformed input -> reported, no retry").
type ValidateProcessor struct{}

func (ValidateProcessor) Name() string                           { return "validate" }
func (ValidateProcessor) SupportedFileTypes() []model.FileType   { return nil }
func (ValidateProcessor) Process(_ context.Context, pc *Context) error {
	if len(pc.RawContent) == 0 {
		return fmt.Errorf("%w: empty document", model.ErrValidation)
	}
	if pc.FileType == model.FileTypeOther {
		return fmt.Errorf("%w: unsupported file type", model.ErrUnsupportedFileType)
	}
	pc.Text = cleanText(string(pc.RawContent))
	return nil
}

// MarkdownNormalizeProcessor converts pdf/docx/html bytes to Markdown
// text via the narrow MarkdownConverter collaborator, run only when
// ProcessingPlan.ConvertToMarkdown is true (§4.5, §6).
type MarkdownNormalizeProcessor struct {
	converter markdownconv.Converter
}

func NewMarkdownNormalizeProcessor(converter markdownconv.Converter) *MarkdownNormalizeProcessor {
	return &MarkdownNormalizeProcessor{converter: converter}
}

func (MarkdownNormalizeProcessor) Name() string { return "markdown_normalize" }
func (MarkdownNormalizeProcessor) SupportedFileTypes() []model.FileType {
	return []model.FileType{model.FileTypePDF, model.FileTypeDOCX, model.FileTypeHTML}
}

func (p *MarkdownNormalizeProcessor) Process(ctx context.Context, pc *Context) error {
	md, err := p.converter.Convert(ctx, pc.RawContent, pc.SourcePath)
	if err != nil {
		return fmt.Errorf("markdown normalize: %w", err)
	}
	pc.Text = md
	return nil
}

// ChunkProcessor dispatches to the Chunker Family (C3) using the plan's
// selected kind/size/overlap (§4.2, §4.5).
type ChunkProcessor struct {
	family *chunking.Family
}

func NewChunkProcessor(family *chunking.Family) *ChunkProcessor {
	return &ChunkProcessor{family: family}
}

func (ChunkProcessor) Name() string                         { return "chunk" }
func (ChunkProcessor) SupportedFileTypes() []model.FileType { return nil }

func (p *ChunkProcessor) Process(_ context.Context, pc *Context) error {
	chunks, err := p.family.Chunk(pc.Text, pc.Plan.Chunking)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	pc.Chunks = chunks
	return nil
}

// EmbedProcessor batches chunk texts through the Embedder Client (C4),
// honoring EMBED_BATCH_MAX (§4.3, §6).
type EmbedProcessor struct {
	embedder embedding.Embedder
	batchMax int
}

func NewEmbedProcessor(embedder embedding.Embedder, batchMax int) *EmbedProcessor {
	if batchMax <= 0 {
		batchMax = 16
	}
	return &EmbedProcessor{embedder: embedder, batchMax: batchMax}
}

func (EmbedProcessor) Name() string                         { return "embed" }
func (EmbedProcessor) SupportedFileTypes() []model.FileType { return nil }

func (p *EmbedProcessor) Process(ctx context.Context, pc *Context) error {
	if len(pc.Chunks) == 0 {
		pc.Nodes = nil
		return nil
	}

	nodes := make([]model.Node, len(pc.Chunks))
	for start := 0; start < len(pc.Chunks); start += p.batchMax {
		end := start + p.batchMax
		if end > len(pc.Chunks) {
			end = len(pc.Chunks)
		}
		batch := pc.Chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return &OrdinalError{Ordinal: start, Err: fmt.Errorf("embed batch: %w", err)}
		}
		if len(vectors) != len(batch) {
			return &OrdinalError{Ordinal: start, Err: fmt.Errorf("%w: embedder returned %d vectors for %d texts", model.ErrEmbedFatal, len(vectors), len(batch))}
		}

		for i, c := range batch {
			ordinal := start + i
			metadata := map[string]any{
				"file_type":     string(pc.FileType),
				"boundary_kind": string(c.Boundary),
			}
			if len(c.HeadingPath) > 0 {
				metadata["heading_path"] = c.HeadingPath
			}
			nodes[ordinal] = model.Node{
				ChunkID:     hashing.ChunkID(pc.DocID, ordinal),
				DocID:       pc.DocID,
				Ordinal:     ordinal,
				Text:        c.Text,
				Embedding:   vectors[i],
				Metadata:    metadata,
				ContentHash: hashing.ChunkHash(c.Text),
			}
		}
	}

	pc.Nodes = nodes
	return nil
}

// IndexProcessor upserts the embedded nodes into the Vector Index
// Adapter (C5) (§4.4, §4.5).
type IndexProcessor struct {
	store vectorstore.Store
}

func NewIndexProcessor(store vectorstore.Store) *IndexProcessor {
	return &IndexProcessor{store: store}
}

func (IndexProcessor) Name() string                         { return "index" }
func (IndexProcessor) SupportedFileTypes() []model.FileType { return nil }

func (p *IndexProcessor) Process(ctx context.Context, pc *Context) error {
	if len(pc.Nodes) == 0 {
		return nil
	}
	if err := p.store.Upsert(ctx, pc.Nodes); err != nil {
		return fmt.Errorf("index upsert: %w", err)
	}
	return nil
}

// FinalizeProcessor writes DocumentState (C1) and updates the
// Document's status/node_count (§4.5 Finalize step).
type FinalizeProcessor struct {
	docs  state.DocumentStore
	state state.StateStore
}

func NewFinalizeProcessor(docs state.DocumentStore, st state.StateStore) *FinalizeProcessor {
	return &FinalizeProcessor{docs: docs, state: st}
}

func (FinalizeProcessor) Name() string                         { return "finalize" }
func (FinalizeProcessor) SupportedFileTypes() []model.FileType { return nil }

func (p *FinalizeProcessor) Process(ctx context.Context, pc *Context) error {
	chunkHashes := make([]string, len(pc.Nodes))
	chunkIDs := make([]string, len(pc.Nodes))
	for i, n := range pc.Nodes {
		chunkHashes[i] = n.ContentHash
		chunkIDs[i] = n.ChunkID
	}

	docState := model.DocumentState{
		DocID:            pc.DocID,
		FileHash:         hashing.FileHash(pc.RawContent),
		ChunkHashes:      chunkHashes,
		ChunkIDs:         chunkIDs,
		LastProcessedAt:  now(),
		MetadataSnapshot: pc.Metadata,
	}
	if err := p.state.Put(ctx, docState); err != nil {
		return fmt.Errorf("finalize: write document state: %w", err)
	}

	pc.NodeCount = len(pc.Nodes)
	if err := p.docs.UpdateStatus(ctx, pc.DocID, model.DocumentStatusCompleted, pc.NodeCount, ""); err != nil {
		return fmt.Errorf("finalize: update document status: %w", err)
	}
	return nil
}

// now is a seam so tests can observe a fixed timestamp without this
// package depending on wall-clock time directly in its core logic.
var now = func() time.Time { return time.Now() }

// cleanText trims the normalized text of leading/trailing blank runs
// the converters sometimes leave behind.
func cleanText(s string) string { return strings.TrimSpace(s) }
