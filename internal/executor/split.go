package executor

import (
	"fmt"

	"github.com/alleneee/docingest/internal/chunking"
	"github.com/alleneee/docingest/internal/model"
)

// DefaultSegmentSize bounds a segment when the plan leaves SegmentSize
// unset.
const DefaultSegmentSize = 1 << 20

// coarseKind picks the C3 coarse splitting mode §4.6 step 1 names:
// SENTENCE_BOUNDARY by default, SEMANTIC_BOUNDARY for structured docs
// (those whose plan asked the fine chunker to respect structure).
func coarseKind(plan model.ProcessingPlan) model.ChunkingKind {
	if plan.Chunking.RespectStructure {
		return model.ChunkingSemanticBoundary
	}
	return model.ChunkingSentenceBoundary
}

// splitSegment is the output of the split stage: one Segment ready for
// dispatch, plus the exact fine-grained chunk count it will produce,
// precomputed here so ordinal_base is known before any segment task
// runs and does not need a post-hoc renumbering pass after dispatch.
type splitSegment struct {
	segment   model.Segment
	fineCount int
}

// Split produces ordered, non-overlapping segments covering text,
// each no larger than plan.SegmentSize, then precomputes how many fine
// chunks plan.Chunking will produce from each segment's text — a pure,
// cheap, CPU-only computation run twice (once here, once for real
// inside the segment worker) rather than carrying the full chunk list
// across the broker boundary, since re-deriving it is deterministic and
// materially cheaper than the embedding calls the worker makes from it.
func split(family *chunking.Family, docID, text string, plan model.ProcessingPlan) ([]splitSegment, error) {
	segSize := plan.SegmentSize
	if segSize <= 0 {
		segSize = DefaultSegmentSize
	}

	coarse, err := family.Chunk(text, model.ChunkingParams{
		Kind:      coarseKind(plan),
		ChunkSize: segSize,
		Language:  plan.Chunking.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("split: coarse chunking failed: %w", err)
	}

	segments := make([]splitSegment, 0, len(coarse))
	ordinalBase := 0
	for i, c := range coarse {
		fine, err := family.Chunk(c.Text, plan.Chunking)
		if err != nil {
			return nil, fmt.Errorf("split: fine-chunk sizing pass failed: %w", err)
		}
		segments = append(segments, splitSegment{
			segment: model.Segment{
				SegmentID:   fmt.Sprintf("%s-seg-%d", docID, i),
				DocID:       docID,
				OrdinalBase: ordinalBase,
				Text:        c.Text,
				ByteStart:   c.StartOffset,
				ByteEnd:     c.EndOffset,
			},
			fineCount: len(fine),
		})
		ordinalBase += len(fine)
	}
	return segments, nil
}
