// Package service is the single upward-facing orchestrator (§6): it
// wires the per-document lock, the Document Analyzer, the Pipeline
// Engine, the Parallel Executor, the Incremental Update Manager and the
// Hybrid Retriever into the six operations a caller needs
// (ingest/analyze/status/delete/search/cancel), so nothing above this
// package reaches into C1-C10 directly.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alleneee/docingest/internal/analyzer"
	"github.com/alleneee/docingest/internal/broker"
	"github.com/alleneee/docingest/internal/cache"
	"github.com/alleneee/docingest/internal/clients/embedding"
	"github.com/alleneee/docingest/internal/config"
	"github.com/alleneee/docingest/internal/executor"
	"github.com/alleneee/docingest/internal/incremental"
	"github.com/alleneee/docingest/internal/logger"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/objectstorage"
	"github.com/alleneee/docingest/internal/pipeline"
	"github.com/alleneee/docingest/internal/retrieval"
	"github.com/alleneee/docingest/internal/state"
	"github.com/alleneee/docingest/internal/vectorstore"
)

const lockTTL = 10 * time.Minute

// Service implements §6's six core operations over the wired
// components. It holds no business logic of its own beyond
// orchestration: every decision (chunking kind, rollback vs partial,
// fusion weights, ...) lives in the component that owns it.
type Service struct {
	storage    objectstorage.Storage
	analyzer   *analyzer.Analyzer
	engine     *pipeline.Engine
	executor   *executor.Executor
	incr       *incremental.Manager
	retriever  *retrieval.Retriever
	docs       state.DocumentStore
	states     state.StateStore
	store      vectorstore.Store
	embedder   embedding.Embedder
	b          broker.Broker
	lock       *cache.DocumentLock
	vectorCfg  config.VectorStoreConfig
	parallel   config.ParallelConfig
}

// New builds a Service from its already-constructed collaborators. All
// of the real wiring (config -> concrete client -> component) happens
// in the fx module, not here.
func New(
	storage objectstorage.Storage,
	an *analyzer.Analyzer,
	engine *pipeline.Engine,
	exec *executor.Executor,
	incr *incremental.Manager,
	retriever *retrieval.Retriever,
	docs state.DocumentStore,
	states state.StateStore,
	store vectorstore.Store,
	embedder embedding.Embedder,
	b broker.Broker,
	lockClient cache.Client,
	vectorCfg config.VectorStoreConfig,
	parallel config.ParallelConfig,
) *Service {
	return &Service{
		storage:   storage,
		analyzer:  an,
		engine:    engine,
		executor:  exec,
		incr:      incr,
		retriever: retriever,
		docs:      docs,
		states:    states,
		store:     store,
		embedder:  embedder,
		b:         b,
		lock:      cache.NewDocumentLock(lockClient, lockTTL),
		vectorCfg: vectorCfg,
		parallel:  parallel,
	}
}

// Analyze implements §6 "analyze(path) -> ProcessingPlan": read the
// source bytes, classify the file type from its path, and return the
// plan the analyzer selects, with no persistence side effects.
func (s *Service) Analyze(ctx context.Context, path string) (model.ProcessingPlan, error) {
	content, err := s.storage.Read(ctx, path)
	if err != nil {
		return model.ProcessingPlan{}, fmt.Errorf("analyze: read %s: %w", path, err)
	}
	fileType := analyzer.DetectFileType(path)
	_, plan, err := s.analyzer.Analyze(fileType, int64(len(content)), string(content))
	if err != nil {
		return model.ProcessingPlan{}, err
	}
	return plan, nil
}

// IngestResult is what Ingest reports once dispatch has completed: for
// a parallel/distributed plan this is the exec_id of a chord still
// running; for everything else the document has already reached a
// terminal status by the time Ingest returns.
type IngestResult struct {
	TaskID string
	Status model.DocumentStatus
}

// Ingest implements §6 "ingest(doc_id, path, metadata, plan_overrides?)
// -> task_id" (§4, §5, §8 "Concurrent re-ingest"): acquire the
// per-document lock, detect a prior DocumentState to decide whether
// this is an incremental update or a first ingest, then drive either
// the synchronous Pipeline Engine, the in-process Executor, or the
// broker-dispatched Executor depending on the plan's size signals.
func (s *Service) Ingest(ctx context.Context, docID, path string, metadata map[string]any, planOverrides *model.ProcessingPlan) (IngestResult, error) {
	handle, ok, err := s.lock.Acquire(ctx, docID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: acquire lock: %w", err)
	}
	if !ok {
		return IngestResult{}, fmt.Errorf("%w: document %s is already being processed", model.ErrDocumentBusy, docID)
	}
	defer func() {
		if releaseErr := s.lock.Release(context.Background(), handle); releaseErr != nil {
			logger.Get().Warn("ingest: release document lock failed", zap.String("doc_id", docID), zap.Error(releaseErr))
		}
	}()

	content, err := s.storage.Read(ctx, path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: read %s: %w", path, err)
	}

	fileType := analyzer.DetectFileType(path)
	features, plan, err := s.analyzer.Analyze(fileType, int64(len(content)), string(content))
	if err != nil {
		return IngestResult{}, err
	}
	if planOverrides != nil {
		plan = mergeOverrides(plan, *planOverrides)
	}

	if err := s.docs.Create(ctx, model.Document{
		DocID:      docID,
		SourcePath: path,
		FileType:   fileType,
		Metadata:   metadata,
		Status:     model.DocumentStatusProcessing,
		SizeBytes:  features.SizeBytes,
	}); err != nil {
		return IngestResult{}, fmt.Errorf("ingest: create document record: %w", err)
	}

	prior, hasPrior, err := s.states.Get(ctx, docID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: read prior state: %w", err)
	}
	if hasPrior && plan.UseIncremental {
		return s.ingestIncremental(ctx, docID, path, content, fileType, features, plan, metadata, prior)
	}
	return s.ingestFull(ctx, docID, path, content, fileType, features, plan, metadata)
}

// ingestFull runs a first ingest (or a forced full reprocess) through
// either the synchronous Pipeline Engine or the Parallel Executor,
// chosen by plan.UseParallel exactly as §4.1/§4.6 describe.
func (s *Service) ingestFull(ctx context.Context, docID, path string, content []byte, fileType model.FileType, features model.DocumentFeatures, plan model.ProcessingPlan, metadata map[string]any) (IngestResult, error) {
	text := string(content)

	if !plan.UseParallel {
		pc := &pipeline.Context{
			DocID:      docID,
			SourcePath: path,
			FileType:   fileType,
			Metadata:   metadata,
			RawContent: content,
			Features:   features,
			Plan:       plan,
			StartedAt:  time.Now(),
		}
		if err := s.engine.Run(ctx, pc); err != nil {
			_ = s.docs.UpdateStatus(ctx, docID, model.DocumentStatusFailed, 0, err.Error())
			return IngestResult{}, fmt.Errorf("ingest: pipeline: %w", err)
		}
		return IngestResult{Status: model.DocumentStatusCompleted}, nil
	}

	if err := s.store.EnsureCollection(ctx, s.vectorCfg.Collection, s.embedder.Dimension(), vectorstore.IndexManagement(s.vectorCfg.IndexManagement)); err != nil {
		return IngestResult{}, fmt.Errorf("ingest: ensure collection: %w", err)
	}

	allowPartial := true
	if s.executor == nil {
		return IngestResult{}, fmt.Errorf("%w: parallel executor not configured", model.ErrValidation)
	}
	if plan.SegmentSize <= 0 {
		return IngestResult{}, fmt.Errorf("%w: plan segment_size must be positive for a parallel document", model.ErrValidation)
	}

	if s.useDistributed() {
		execID, err := s.executor.Execute(ctx, docID, content, text, plan, metadata, allowPartial)
		if err != nil {
			_ = s.docs.UpdateStatus(ctx, docID, model.DocumentStatusFailed, 0, err.Error())
			return IngestResult{}, fmt.Errorf("ingest: dispatch executor: %w", err)
		}
		return IngestResult{TaskID: execID, Status: model.DocumentStatusProcessing}, nil
	}

	outcome, err := s.executor.ExecuteLocal(ctx, docID, content, text, plan, metadata, allowPartial)
	if err != nil {
		return IngestResult{Status: outcome.Status}, fmt.Errorf("ingest: local executor: %w", err)
	}
	return IngestResult{Status: outcome.Status}, nil
}

// ingestIncremental runs §4.8: diff the new content's chunk hashes
// against DocumentState, and either patch the changed chunks in place
// or fall back to a full reprocess when the delta exceeds the
// configured threshold.
func (s *Service) ingestIncremental(ctx context.Context, docID, path string, content []byte, fileType model.FileType, features model.DocumentFeatures, plan model.ProcessingPlan, metadata map[string]any, prior model.DocumentState) (IngestResult, error) {
	decision, err := s.incr.Decide(content, plan.Chunking, prior.FileHash, prior.ChunkHashes)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: incremental decision: %w", err)
	}
	if decision.Unchanged {
		if err := s.docs.UpdateStatus(ctx, docID, model.DocumentStatusCompleted, len(prior.ChunkIDs), ""); err != nil {
			return IngestResult{}, fmt.Errorf("ingest: update status for unchanged document: %w", err)
		}
		return IngestResult{Status: model.DocumentStatusCompleted}, nil
	}
	if decision.FullReprocess {
		return s.ingestFull(ctx, docID, path, content, fileType, features, plan, metadata)
	}

	result, err := s.incr.Apply(ctx, docID, content, plan.Chunking, metadata, decision)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: apply incremental patch: %w", err)
	}
	nodeCount := len(prior.ChunkIDs) - len(result.DeletedChunkIDs) + result.UpsertedCount
	if err := s.docs.UpdateStatus(ctx, docID, model.DocumentStatusCompleted, nodeCount, ""); err != nil {
		return IngestResult{}, fmt.Errorf("ingest: update status after patch: %w", err)
	}
	return IngestResult{Status: model.DocumentStatusCompleted}, nil
}

// useDistributed decides Execute (broker chord) vs ExecuteLocal
// (in-process worker pool) for a parallel plan, mirroring the
// executor's own ParallelConfig.UseDistributed knob (§5).
func (s *Service) useDistributed() bool {
	return s.parallel.UseDistributed && s.b != nil
}

// Status implements §6 "status(doc_id) -> Document".
func (s *Service) Status(ctx context.Context, docID string) (model.Document, error) {
	doc, ok, err := s.docs.Get(ctx, docID)
	if err != nil {
		return model.Document{}, fmt.Errorf("status: %w", err)
	}
	if !ok {
		return model.Document{}, fmt.Errorf("%w: document %s not found", model.ErrValidation, docID)
	}
	return doc, nil
}

// Delete implements §6 "delete(doc_id)": remove the document's nodes
// from the vector store, then its metadata and incremental state.
func (s *Service) Delete(ctx context.Context, docID string) error {
	if err := s.store.DeleteByDoc(ctx, docID); err != nil {
		return fmt.Errorf("delete: vector store: %w", err)
	}
	if err := s.states.Delete(ctx, docID); err != nil {
		return fmt.Errorf("delete: document state: %w", err)
	}
	if err := s.docs.Delete(ctx, docID); err != nil {
		return fmt.Errorf("delete: document record: %w", err)
	}
	return nil
}

// Search implements §6 "search(query, top_k, filters?, flags?) ->
// list<RetrievalResult>", a thin pass-through to the Hybrid Retriever.
func (s *Service) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Result, error) {
	return s.retriever.Search(ctx, q)
}

// Cancel implements §6 "cancel(task_id|doc_id)" (§5): an id the broker
// knows as a task is canceled through the broker; any other id is
// treated as a doc_id and that document is marked canceling. Marking a
// document canceling does not cancel its outstanding segment tasks and
// does not roll back chunks already persisted for it.
func (s *Service) Cancel(ctx context.Context, taskOrDocID string) error {
	if s.b != nil {
		if _, err := s.b.Status(ctx, taskOrDocID); err == nil {
			return s.b.Cancel(ctx, taskOrDocID)
		}
	}

	doc, ok, err := s.docs.Get(ctx, taskOrDocID)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: no task or document %s", model.ErrValidation, taskOrDocID)
	}
	if err := s.docs.UpdateStatus(ctx, taskOrDocID, model.DocumentStatusCanceling, doc.NodeCount, ""); err != nil {
		return fmt.Errorf("cancel: mark document canceling: %w", err)
	}
	return nil
}

// mergeOverrides applies a caller-supplied ProcessingPlan's non-zero
// fields over the analyzer's own selection, so an override need only
// set the fields it cares about (§6 "plan_overrides?").
func mergeOverrides(base, override model.ProcessingPlan) model.ProcessingPlan {
	if override.Chunking.Kind != "" {
		base.Chunking.Kind = override.Chunking.Kind
	}
	if override.Chunking.ChunkSize != 0 {
		base.Chunking.ChunkSize = override.Chunking.ChunkSize
	}
	if override.Chunking.ChunkOverlap != 0 {
		base.Chunking.ChunkOverlap = override.Chunking.ChunkOverlap
	}
	if override.SegmentSize != 0 {
		base.SegmentSize = override.SegmentSize
	}
	base.UseParallel = base.UseParallel || override.UseParallel
	base.UseIncremental = base.UseIncremental || override.UseIncremental
	if override.DatasourceName != "" {
		base.DatasourceName = override.DatasourceName
	}
	return base
}
