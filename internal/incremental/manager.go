package incremental

import (
	"context"
	"fmt"

	"github.com/alleneee/docingest/internal/chunking"
	"github.com/alleneee/docingest/internal/clients/embedding"
	"github.com/alleneee/docingest/internal/config"
	"github.com/alleneee/docingest/internal/hashing"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/state"
	"github.com/alleneee/docingest/internal/vectorstore"
)

// Decision is what Decide computes before any store mutation, so a
// caller can log/inspect delta_ratio ahead of Apply (§4.8, §8).
type Decision struct {
	Unchanged     bool
	FullReprocess bool
	DeltaRatio    float64
	NewHashes     []string
	blocks        []editBlock
}

// Manager is C8: it owns the diff-then-patch decision, kept separate
// from the Pipeline Engine (C6) so C6's plan step can consult it
// without owning its diff logic (§4.5 step 2, §4.8).
type Manager struct {
	family   *chunking.Family
	embedder embedding.Embedder
	store    vectorstore.Store
	docs     state.DocumentStore
	state    state.StateStore
	cfg      config.IncrementalConfig
}

func NewManager(family *chunking.Family, embedder embedding.Embedder, store vectorstore.Store, docs state.DocumentStore, st state.StateStore, cfg config.IncrementalConfig) *Manager {
	if cfg.ForceReprocessThreshold <= 0 {
		cfg.ForceReprocessThreshold = 0.5
	}
	return &Manager{family: family, embedder: embedder, store: store, docs: docs, state: st, cfg: cfg}
}

// Decide implements §4.8's decision steps against a document's prior
// state. newContent is the full new file; oldHash/oldChunkHashes come
// from the previously persisted model.DocumentState.
func (m *Manager) Decide(newContent []byte, chunkingParams model.ChunkingParams, oldFileHash string, oldChunkHashes []string) (Decision, error) {
	newFileHash := hashing.FileHash(newContent)
	if newFileHash == oldFileHash {
		return Decision{Unchanged: true}, nil
	}

	chunks, err := m.family.Chunk(string(newContent), chunkingParams)
	if err != nil {
		return Decision{}, fmt.Errorf("incremental decide: chunk new content: %w", err)
	}
	newHashes := make([]string, len(chunks))
	for i, c := range chunks {
		newHashes[i] = hashing.ChunkHash(c.Text)
	}

	blocks, changed := diffHashes(oldChunkHashes, newHashes)
	total := max(len(oldChunkHashes), len(newHashes))
	ratio := 0.0
	if total > 0 {
		ratio = float64(changed) / float64(total)
	}

	return Decision{
		DeltaRatio:    ratio,
		FullReprocess: ratio >= m.cfg.ForceReprocessThreshold,
		NewHashes:     newHashes,
		blocks:        blocks,
	}, nil
}

// PatchResult is what Apply reports after a partial-reprocess run.
type PatchResult struct {
	DeletedChunkIDs []string
	UpsertedCount   int
}

// Apply executes the partial-reprocess path of §4.8: delete the
// changed/removed chunk_ids and embed+upsert the added/changed ones.
// An equal block keeps its ordinal (and therefore chunk_id) only when
// the block did not shift position; a shifted equal block is re-keyed
// like any other edit, since its chunk_id still changed even though
// its text did not.
func (m *Manager) Apply(ctx context.Context, docID string, content []byte, chunkingParams model.ChunkingParams, metadata map[string]any, decision Decision) (PatchResult, error) {
	if decision.FullReprocess || decision.Unchanged {
		return PatchResult{}, fmt.Errorf("incremental apply: called on a %s decision", decisionKind(decision))
	}

	chunks, err := m.family.Chunk(string(content), chunkingParams)
	if err != nil {
		return PatchResult{}, fmt.Errorf("incremental apply: re-chunk new content: %w", err)
	}

	var toDelete []string
	var toUpsert []model.Node
	var newOrdinals []int

	for _, b := range decision.blocks {
		if b.Equal && !b.Shifted() {
			// Unchanged text at an unchanged ordinal: nothing to do.
			continue
		}
		// A shifted equal block has identical text but a moved ordinal,
		// so its chunk_id (derived from doc_id+ordinal) still changed;
		// it must be re-keyed the same as a genuine edit, or the old
		// ordinal's row is left stranded and the new ordinal's row is
		// never created (§8 Contiguity).
		for ord := b.OldStart; ord < b.OldEnd; ord++ {
			toDelete = append(toDelete, hashing.ChunkID(docID, ord))
		}
		for ord := b.NewStart; ord < b.NewEnd; ord++ {
			newOrdinals = append(newOrdinals, ord)
		}
	}

	if len(newOrdinals) > 0 {
		texts := make([]string, len(newOrdinals))
		for i, ord := range newOrdinals {
			texts[i] = chunks[ord].Text
		}
		vectors, err := m.embedder.Embed(ctx, texts)
		if err != nil {
			return PatchResult{}, fmt.Errorf("incremental apply: embed changed chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return PatchResult{}, fmt.Errorf("%w: embedder returned %d vectors for %d texts", model.ErrEmbedFatal, len(vectors), len(texts))
		}
		for i, ord := range newOrdinals {
			c := chunks[ord]
			nodeMetadata := map[string]any{"boundary_kind": string(c.Boundary)}
			for k, v := range metadata {
				nodeMetadata[k] = v
			}
			if len(c.HeadingPath) > 0 {
				nodeMetadata["heading_path"] = c.HeadingPath
			}
			toUpsert = append(toUpsert, model.Node{
				ChunkID:     hashing.ChunkID(docID, ord),
				DocID:       docID,
				Ordinal:     ord,
				Text:        c.Text,
				Embedding:   vectors[i],
				Metadata:    nodeMetadata,
				ContentHash: hashing.ChunkHash(c.Text),
			})
		}
	}

	// Idempotency (§4.8): deletes by id and upserts both converge under
	// retry, so there is no ordering hazard running delete before
	// upsert even though some deleted and upserted ids are the same
	// number (a same-position replace reported as delete+upsert).
	if len(toDelete) > 0 {
		if err := m.store.DeleteByIDs(ctx, toDelete); err != nil {
			return PatchResult{}, fmt.Errorf("%w: %v", model.ErrStoreTransient, err)
		}
	}
	if len(toUpsert) > 0 {
		if err := m.store.Upsert(ctx, toUpsert); err != nil {
			return PatchResult{}, fmt.Errorf("%w: %v", model.ErrStoreTransient, err)
		}
	}

	docState := model.DocumentState{
		DocID:            docID,
		FileHash:         hashing.FileHash(content),
		ChunkHashes:      decision.NewHashes,
		ChunkIDs:         chunkIDsForOrdinals(docID, len(decision.NewHashes)),
		LastProcessedAt:  now(),
		MetadataSnapshot: metadata,
	}
	if err := m.state.Put(ctx, docState); err != nil {
		return PatchResult{}, fmt.Errorf("incremental apply: write document state: %w", err)
	}
	if err := m.docs.UpdateStatus(ctx, docID, model.DocumentStatusCompleted, len(decision.NewHashes), ""); err != nil {
		return PatchResult{}, fmt.Errorf("incremental apply: update document status: %w", err)
	}

	return PatchResult{DeletedChunkIDs: toDelete, UpsertedCount: len(toUpsert)}, nil
}

func chunkIDsForOrdinals(docID string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = hashing.ChunkID(docID, i)
	}
	return ids
}

func decisionKind(d Decision) string {
	if d.Unchanged {
		return "unchanged"
	}
	return "full-reprocess"
}
