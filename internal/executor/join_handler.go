package executor

import (
	"context"
	"fmt"

	"github.com/alleneee/docingest/internal/cache"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/state"
	"github.com/alleneee/docingest/internal/vectorstore"
)

// JoinHandler is the broker-dispatched chord body of §4.6 steps 3-4: by
// the time it runs, every segment of the group has already written its
// outcome to the cache (see SegmentHandler), so join only needs to read
// them back in order and decide rollback/partial/completed.
type JoinHandler struct {
	store vectorstore.Store
	docs  state.DocumentStore
	state state.StateStore
	cache cache.Client
}

func NewJoinHandler(store vectorstore.Store, docs state.DocumentStore, st state.StateStore, cacheClient cache.Client) *JoinHandler {
	return &JoinHandler{store: store, docs: docs, state: st, cache: cacheClient}
}

// Handle satisfies broker.Handler.
func (h *JoinHandler) Handle(ctx context.Context, payload []byte) error {
	var p joinPayload
	if err := decodePayload(payload, &p); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}

	results, err := h.collect(ctx, p.ExecID, p.SegmentCount)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrBrokerTransient, err)
	}

	outcome := joinResults(ctx, h.store, p.DocID, results, p.AllowPartial)
	if err := finalizeJoin(ctx, h.docs, h.state, p.DocID, p.FileHash, p.Metadata, outcome); err != nil {
		// finalizeJoin already persisted the failed/partial status;
		// the returned error only marks this task attempt done, so it
		// must not trigger an asynq retry of work already settled.
		return fmt.Errorf("%v: %w", err, model.ErrValidation)
	}
	_ = h.cache.Delete(ctx, abortedKey(p.ExecID))
	return nil
}

// collect reads every segment's cache record for execID. A missing
// record (segment task lost, e.g. a worker crash mid-task) is treated
// as a failure, same as SegmentHandler recording one explicitly, so a
// vanished task cannot silently shrink the node count.
func (h *JoinHandler) collect(ctx context.Context, execID string, count int) ([]*model.SegmentResult, error) {
	results := make([]*model.SegmentResult, count)
	for i := 0; i < count; i++ {
		raw, err := h.cache.Get(ctx, resultKey(execID, i))
		if err != nil {
			return nil, fmt.Errorf("read segment %d result: %w", i, err)
		}
		if raw == "" {
			results[i] = &model.SegmentResult{Err: model.ErrSegmentFailure}
			continue
		}
		var rec resultRecord
		if err := decodePayload([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode segment %d result: %w", i, err)
		}
		r := &model.SegmentResult{ChunkIDs: rec.ChunkIDs, ChunkHashes: rec.ChunkHashes, Count: rec.Count}
		if rec.Err != "" {
			r.Err = fmt.Errorf("%s", rec.Err)
		}
		results[i] = r
		_ = h.cache.Delete(ctx, resultKey(execID, i))
	}
	return results, nil
}
