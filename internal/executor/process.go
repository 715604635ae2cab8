package executor

import (
	"context"
	"fmt"

	"github.com/alleneee/docingest/internal/chunking"
	"github.com/alleneee/docingest/internal/clients/embedding"
	"github.com/alleneee/docingest/internal/hashing"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/vectorstore"
)

// processSegment runs the per-segment `chunk -> embed -> upsert` unit
// of work §4.6 step 2 describes, shared by the in-process local
// executor and the broker-dispatched segment handler so the two
// execution modes of §5 ("in-process" vs. "cross-process") cannot
// drift apart.
func processSegment(
	ctx context.Context,
	family *chunking.Family,
	embedder embedding.Embedder,
	store vectorstore.Store,
	docID string,
	segmentID string,
	ordinalBase int,
	text string,
	chunkingParams model.ChunkingParams,
	metadata map[string]any,
) model.SegmentResult {
	chunks, err := family.Chunk(text, chunkingParams)
	if err != nil {
		return model.SegmentResult{SegmentID: segmentID, Err: fmt.Errorf("%w: %v", model.ErrValidation, err)}
	}
	if len(chunks) == 0 {
		return model.SegmentResult{SegmentID: segmentID}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	select {
	case <-ctx.Done():
		return model.SegmentResult{SegmentID: segmentID, Err: model.ErrCanceled}
	default:
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return model.SegmentResult{SegmentID: segmentID, Err: err}
	}
	if len(vectors) != len(chunks) {
		return model.SegmentResult{SegmentID: segmentID, Err: fmt.Errorf("%w: embedder returned %d vectors for %d texts", model.ErrEmbedFatal, len(vectors), len(chunks))}
	}

	nodes := make([]model.Node, len(chunks))
	chunkIDs := make([]string, len(chunks))
	chunkHashes := make([]string, len(chunks))
	for i, c := range chunks {
		ordinal := ordinalBase + i
		nodeMetadata := map[string]any{"boundary_kind": string(c.Boundary)}
		for k, v := range metadata {
			nodeMetadata[k] = v
		}
		if len(c.HeadingPath) > 0 {
			nodeMetadata["heading_path"] = c.HeadingPath
		}
		chunkID := hashing.ChunkID(docID, ordinal)
		hash := hashing.ChunkHash(c.Text)
		nodes[i] = model.Node{
			ChunkID:     chunkID,
			DocID:       docID,
			Ordinal:     ordinal,
			Text:        c.Text,
			Embedding:   vectors[i],
			Metadata:    nodeMetadata,
			ContentHash: hash,
		}
		chunkIDs[i] = chunkID
		chunkHashes[i] = hash
	}

	if err := store.Upsert(ctx, nodes); err != nil {
		return model.SegmentResult{SegmentID: segmentID, Err: fmt.Errorf("%w: %v", model.ErrStoreTransient, err)}
	}

	return model.SegmentResult{SegmentID: segmentID, ChunkIDs: chunkIDs, ChunkHashes: chunkHashes, Count: len(nodes)}
}
