package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/alleneee/docingest/internal/hashing"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/state"
	"github.com/alleneee/docingest/internal/vectorstore"
)

// now is a seam over time.Now so tests can produce deterministic
// LastProcessedAt values.
var now = func() time.Time { return time.Now() }

// joinOutcome is what join computes after every segment has reported
// in: the final document status plus, on success, the aggregated
// chunk id/hash lists finalize needs for DocumentState (§4.6 step 3).
type joinOutcome struct {
	Status      model.DocumentStatus
	NodeCount   int
	ChunkIDs    []string
	ChunkHashes []string
	Error       string
}

// joinResults implements §4.6 steps 3-4: aggregate segment outcomes in
// dispatch order and decide rollback vs. partial vs. completed. It does
// not re-check ordinal contiguity; that rests on the ordinal_base values
// split precomputes for every segment. results must be ordered by segment index; a
// nil entry (segment never reported) is treated as a failure so a lost
// task cannot silently shrink node_count.
func joinResults(ctx context.Context, store vectorstore.Store, docID string, results []*model.SegmentResult, allowPartial bool) joinOutcome {
	var failed int
	var chunkIDs, chunkHashes []string

	for _, r := range results {
		if r == nil || r.Err != nil {
			failed++
			continue
		}
		chunkIDs = append(chunkIDs, r.ChunkIDs...)
		chunkHashes = append(chunkHashes, r.ChunkHashes...)
	}

	if failed == 0 {
		return joinOutcome{Status: model.DocumentStatusCompleted, NodeCount: len(chunkIDs), ChunkIDs: chunkIDs, ChunkHashes: chunkHashes}
	}

	if allowPartial {
		// §4.6 step 4, "allow_partial=true" branch: keep what succeeded,
		// mark partial, record the gap count in the error string since
		// DocumentStatus carries no separate gap field.
		return joinOutcome{
			Status:    model.DocumentStatusPartial,
			NodeCount: len(chunkIDs),
			ChunkIDs:  chunkIDs, ChunkHashes: chunkHashes,
			Error: fmt.Sprintf("%d of %d segments failed; %d chunks persisted", failed, len(results), len(chunkIDs)),
		}
	}

	// Default rollback policy (§4.6 step 4, §8 "Rollback atomicity"):
	// delete every chunk reported by a succeeded segment so the index
	// ends with zero chunks for this doc_id.
	if len(chunkIDs) > 0 {
		if err := store.DeleteByIDs(ctx, chunkIDs); err != nil {
			return joinOutcome{Status: model.DocumentStatusFailed, Error: fmt.Sprintf("%d segments failed; rollback also failed: %v", failed, err)}
		}
	}
	return joinOutcome{Status: model.DocumentStatusFailed, Error: fmt.Sprintf("%d of %d segments failed", failed, len(results))}
}

// finalizeJoin writes DocumentState and the Document's status/node_count
// once joinResults has decided the outcome, completing §4.6 step 3's
// "then triggers finalize".
func finalizeJoin(ctx context.Context, docs state.DocumentStore, st state.StateStore, docID, fileHash string, metadata map[string]any, outcome joinOutcome) error {
	if outcome.Status == model.DocumentStatusCompleted {
		docState := model.DocumentState{
			DocID:            docID,
			FileHash:         fileHash,
			ChunkHashes:      outcome.ChunkHashes,
			ChunkIDs:         outcome.ChunkIDs,
			LastProcessedAt:  now(),
			MetadataSnapshot: metadata,
		}
		if err := st.Put(ctx, docState); err != nil {
			return fmt.Errorf("join finalize: write document state: %w", err)
		}
	}
	if err := docs.UpdateStatus(ctx, docID, outcome.Status, outcome.NodeCount, outcome.Error); err != nil {
		return fmt.Errorf("join finalize: update document status: %w", err)
	}
	if outcome.Status == model.DocumentStatusFailed {
		return fmt.Errorf("%w: %s", model.ErrSegmentFailure, outcome.Error)
	}
	return nil
}

// hashFile is a package-local alias kept next to the join logic so
// callers do not need their own import of internal/hashing just to
// compute FileHash for finalize.
func hashFile(content []byte) string { return hashing.FileHash(content) }
