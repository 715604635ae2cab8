package executor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alleneee/docingest/internal/broker"
	"github.com/alleneee/docingest/internal/chunking"
	"github.com/alleneee/docingest/internal/clients/embedding"
	"github.com/alleneee/docingest/internal/config"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/state"
	"github.com/alleneee/docingest/internal/vectorstore"
)

// TaskSegment and TaskJoin are the broker task names this package
// submits (see Execute) and whose handlers a worker must register (see
// NewSegmentHandler, NewJoinHandler) for document.segment/document.merge
// chords to actually run anywhere.
const (
	TaskSegment = "document.segment"
	TaskJoin    = "document.merge"

	taskSplitDocument = TaskSegment
	taskJoinDocument  = TaskJoin
)

// Executor is C7: it splits a document's text into segments, runs each
// segment's chunk/embed/upsert unit of work, and joins the results into
// one document outcome (§4.6). Execute dispatches across the broker for
// UseDistributed plans; ExecuteLocal runs the same units of work with an
// in-process bounded worker pool for everything else (§5).
type Executor struct {
	family   *chunking.Family
	embedder embedding.Embedder
	store    vectorstore.Store
	docs     state.DocumentStore
	state    state.StateStore
	broker   broker.Broker
	cfg      config.ParallelConfig
}

func NewExecutor(family *chunking.Family, embedder embedding.Embedder, store vectorstore.Store, docs state.DocumentStore, st state.StateStore, b broker.Broker, cfg config.ParallelConfig) *Executor {
	return &Executor{family: family, embedder: embedder, store: store, docs: docs, state: st, broker: b, cfg: cfg}
}

// Outcome is what one Execute/ExecuteLocal call reports once the
// document has reached a terminal status.
type Outcome struct {
	Status    model.DocumentStatus
	NodeCount int
	Error     string
}

// Execute dispatches the document's segments through the broker as a
// chord: every `document.segment` member must report before the
// `document.merge` body runs (§4.6, §4.7). It returns once the chord
// has been submitted, not once it has finished; callers read the final
// Outcome from the Document record via state.DocumentStore.
func (e *Executor) Execute(ctx context.Context, docID string, content []byte, text string, plan model.ProcessingPlan, metadata map[string]any, allowPartial bool) (execID string, err error) {
	segments, err := split(e.family, docID, text, plan)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: document produced no segments", model.ErrValidation)
	}

	execID = fmt.Sprintf("%s-exec-%s", docID, hashFile(content)[:12])

	group := make([]broker.GroupTask, len(segments))
	for i, s := range segments {
		payload, err := encodePayload(segmentPayload{
			ExecID:       execID,
			DocID:        docID,
			SegmentIndex: i,
			SegmentID:    s.segment.SegmentID,
			OrdinalBase:  s.segment.OrdinalBase,
			Text:         s.segment.Text,
			Chunking:     plan.Chunking,
			Metadata:     metadata,
		})
		if err != nil {
			return "", err
		}
		group[i] = broker.GroupTask{
			Name:    taskSplitDocument,
			Payload: payload,
			Opts:    broker.SubmitOptions{Queue: broker.QueueDocumentSegment, MaxRetries: 1},
		}
	}

	bodyPayload, err := encodePayload(joinPayload{
		ExecID:       execID,
		DocID:        docID,
		SegmentCount: len(segments),
		AllowPartial: allowPartial,
		FileHash:     hashFile(content),
		Metadata:     metadata,
	})
	if err != nil {
		return "", err
	}
	body := broker.GroupTask{
		Name:    taskJoinDocument,
		Payload: bodyPayload,
		Opts:    broker.SubmitOptions{Queue: broker.QueueDocumentMerging, MaxRetries: 0},
	}

	if _, err := e.broker.Chord(ctx, group, body); err != nil {
		return "", fmt.Errorf("%w: dispatch segment chord: %v", model.ErrBrokerTransient, err)
	}
	return execID, nil
}

// ExecuteLocal runs every segment in this process with a worker pool
// capped at cfg.MaxWorkers (§5: "worker pool sized by CPU count with a
// cap"), then joins in line. Used when plan.UseParallel is set but
// UseDistributed is not, so a single-node deployment still benefits
// from concurrent segment processing without a broker round trip.
func (e *Executor) ExecuteLocal(ctx context.Context, docID string, content []byte, text string, plan model.ProcessingPlan, metadata map[string]any, allowPartial bool) (Outcome, error) {
	segments, err := split(e.family, docID, text, plan)
	if err != nil {
		return Outcome{}, err
	}
	if len(segments) == 0 {
		return Outcome{}, fmt.Errorf("%w: document produced no segments", model.ErrValidation)
	}

	limit := e.cfg.MaxWorkers
	if limit <= 0 {
		limit = 1
	}

	results := make([]*model.SegmentResult, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	aborted := make(chan struct{})
	var abortOnce sync.Once

	for i, s := range segments {
		i, s := i, s
		g.Go(func() error {
			select {
			case <-aborted:
				results[i] = &model.SegmentResult{SegmentID: s.segment.SegmentID, Err: model.ErrCanceled}
				return nil
			default:
			}
			r := processSegment(gctx, e.family, e.embedder, e.store, docID, s.segment.SegmentID, s.segment.OrdinalBase, s.segment.Text, plan.Chunking, metadata)
			results[i] = &r
			if r.Err != nil && isFatal(r.Err) {
				abortOnce.Do(func() { close(aborted) })
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome{}, fmt.Errorf("%w: segment worker pool: %v", model.ErrBrokerTransient, err)
	}

	outcome := joinResults(ctx, e.store, docID, results, allowPartial)
	if err := finalizeJoin(ctx, e.docs, e.state, docID, hashFile(content), metadata, outcome); err != nil {
		return Outcome{Status: outcome.Status, NodeCount: outcome.NodeCount, Error: outcome.Error}, err
	}
	return Outcome{Status: outcome.Status, NodeCount: outcome.NodeCount, Error: outcome.Error}, nil
}
