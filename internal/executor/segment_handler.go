package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alleneee/docingest/internal/cache"
	"github.com/alleneee/docingest/internal/chunking"
	"github.com/alleneee/docingest/internal/clients/embedding"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/vectorstore"
)

// resultTTL bounds how long a segment's result waits in the cache for
// the join task to read it; long enough for a slow sibling segment,
// short enough not to leak keys across executions.
const resultTTL = 2 * time.Hour

func resultKey(execID string, segmentIndex int) string {
	return fmt.Sprintf("executor:result:%s:%d", execID, segmentIndex)
}

func abortedKey(execID string) string {
	return fmt.Sprintf("executor:aborted:%s", execID)
}

// resultRecord is the JSON-serializable twin of model.SegmentResult;
// the latter carries a plain `error`, which does not round-trip
// through JSON, so the cache stores this shape instead.
type resultRecord struct {
	ChunkIDs    []string `json:"chunk_ids,omitempty"`
	ChunkHashes []string `json:"chunk_hashes,omitempty"`
	Count       int      `json:"count"`
	Err         string   `json:"err,omitempty"`
}

func toRecord(r model.SegmentResult) resultRecord {
	rec := resultRecord{ChunkIDs: r.ChunkIDs, ChunkHashes: r.ChunkHashes, Count: r.Count}
	if r.Err != nil {
		rec.Err = r.Err.Error()
	}
	return rec
}

// SegmentHandler is the broker-dispatched side of §4.6 step 2: decode a
// segmentPayload, run processSegment, and record the outcome for the
// join task rather than returning it to the broker, so one segment's
// fatal failure does not stop its siblings' chord member from firing
// (a returned error would skip continueChord entirely, see
// internal/broker/worker.go wrap, and the chord would never close).
type SegmentHandler struct {
	family   *chunking.Family
	embedder embedding.Embedder
	store    vectorstore.Store
	cache    cache.Client
}

func NewSegmentHandler(family *chunking.Family, embedder embedding.Embedder, store vectorstore.Store, cacheClient cache.Client) *SegmentHandler {
	return &SegmentHandler{family: family, embedder: embedder, store: store, cache: cacheClient}
}

// Handle satisfies broker.Handler.
func (h *SegmentHandler) Handle(ctx context.Context, payload []byte) error {
	var p segmentPayload
	if err := decodePayload(payload, &p); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}

	aborted, err := h.cache.Exists(ctx, abortedKey(p.ExecID))
	if err != nil {
		return fmt.Errorf("%w: check aborted marker: %v", model.ErrBrokerTransient, err)
	}
	var result model.SegmentResult
	if aborted {
		result = model.SegmentResult{SegmentID: p.SegmentID, Err: model.ErrCanceled}
	} else {
		result = processSegment(ctx, h.family, h.embedder, h.store, p.DocID, p.SegmentID, p.OrdinalBase, p.Text, p.Chunking, p.Metadata)
		if result.Err != nil && isFatal(result.Err) {
			// §8 "fail fast": mark the execution aborted so siblings
			// still queued behind this one skip their work instead of
			// running to no purpose ahead of a guaranteed rollback.
			if setErr := h.cache.Set(ctx, abortedKey(p.ExecID), "1", resultTTL); setErr != nil {
				return fmt.Errorf("%w: mark aborted: %v", model.ErrBrokerTransient, setErr)
			}
		}
	}

	if err := h.cache.SetJSON(ctx, resultKey(p.ExecID, p.SegmentIndex), toRecord(result), resultTTL); err != nil {
		return fmt.Errorf("%w: record segment result: %v", model.ErrBrokerTransient, err)
	}
	return nil
}

func isFatal(err error) bool {
	return errors.Is(err, model.ErrEmbedFatal) || errors.Is(err, model.ErrStoreFatal) || errors.Is(err, model.ErrValidation)
}
