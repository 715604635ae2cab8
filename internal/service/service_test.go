package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alleneee/docingest/internal/analyzer"
	"github.com/alleneee/docingest/internal/cache"
	"github.com/alleneee/docingest/internal/chunking"
	"github.com/alleneee/docingest/internal/config"
	"github.com/alleneee/docingest/internal/incremental"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/pipeline"
	"github.com/alleneee/docingest/internal/retrieval"
	"github.com/alleneee/docingest/internal/state"
	"github.com/alleneee/docingest/internal/vectorstore"
)

// fakeCache is an in-memory stand-in for cache.Client, narrow enough to
// back DocumentLock: SetNX/Get/Delete plus an Eval that implements the
// same compare-and-delete semantics as lock.go's releaseScript without
// needing a real Lua interpreter.
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

var _ cache.Client = (*fakeCache)(nil)

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string]string)} }

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *fakeCache) SetJSON(context.Context, string, any, time.Duration) error { return nil }
func (c *fakeCache) GetJSON(context.Context, string, any) error               { return nil }

func (c *fakeCache) Eval(_ context.Context, _ string, key string, args ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(args) == 0 {
		return 0, nil
	}
	if c.data[key] != args[0] {
		return 0, nil
	}
	delete(c.data, key)
	return 1, nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }
func (c *fakeCache) Close()                     {}

type fakeStorage struct{ files map[string][]byte }

func (f *fakeStorage) Read(_ context.Context, key string) ([]byte, error) { return f.files[key], nil }
func (f *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.files[key]
	return ok, nil
}

type fakeDocs struct {
	mu   sync.Mutex
	docs map[string]model.Document
}

var _ state.DocumentStore = (*fakeDocs)(nil)

func newFakeDocs() *fakeDocs { return &fakeDocs{docs: make(map[string]model.Document)} }

func (f *fakeDocs) Create(_ context.Context, d model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[d.DocID] = d
	return nil
}
func (f *fakeDocs) Get(_ context.Context, docID string) (model.Document, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[docID]
	return d, ok, nil
}
func (f *fakeDocs) UpdateStatus(_ context.Context, docID string, status model.DocumentStatus, nodeCount int, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.docs[docID]
	d.DocID = docID
	d.Status = status
	d.NodeCount = nodeCount
	d.Error = errMsg
	f.docs[docID] = d
	return nil
}
func (f *fakeDocs) Delete(_ context.Context, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, docID)
	return nil
}

type fakeState struct {
	mu     sync.Mutex
	states map[string]model.DocumentState
}

var _ state.StateStore = (*fakeState)(nil)

func newFakeState() *fakeState { return &fakeState{states: make(map[string]model.DocumentState)} }

func (f *fakeState) Get(_ context.Context, docID string) (model.DocumentState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[docID]
	return s, ok, nil
}
func (f *fakeState) Put(_ context.Context, s model.DocumentState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[s.DocID] = s
	return nil
}
func (f *fakeState) Delete(_ context.Context, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, docID)
	return nil
}

type fakeVectorStore struct {
	mu    sync.Mutex
	nodes map[string]model.Node
}

var _ vectorstore.Store = (*fakeVectorStore)(nil)

func newFakeVectorStore() *fakeVectorStore { return &fakeVectorStore{nodes: make(map[string]model.Node)} }

func (s *fakeVectorStore) EnsureCollection(context.Context, string, int, vectorstore.IndexManagement) error {
	return nil
}
func (s *fakeVectorStore) Upsert(_ context.Context, nodes []model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		s.nodes[n.ChunkID] = n
	}
	return nil
}
func (s *fakeVectorStore) DeleteByDoc(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.nodes {
		if n.DocID == docID {
			delete(s.nodes, id)
		}
	}
	return nil
}
func (s *fakeVectorStore) DeleteByIDs(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.nodes, id)
	}
	return nil
}
func (s *fakeVectorStore) VectorSearch(context.Context, []float32, int, vectorstore.Filter) ([]vectorstore.ScoredNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := make([]vectorstore.ScoredNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		hits = append(hits, vectorstore.ScoredNode{Node: n, Score: 1})
	}
	return hits, nil
}
func (s *fakeVectorStore) LexicalSearch(context.Context, []string, int, vectorstore.Filter) ([]vectorstore.ScoredNode, error) {
	return nil, nil
}
func (s *fakeVectorStore) NodeCount(context.Context, string) (int, error) { return 0, nil }

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Dimension() int { return f.dim }
func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, f.dim)
	}
	return vecs, nil
}

func newTestService(t *testing.T, files map[string][]byte) (*Service, *fakeDocs, *fakeState, *fakeVectorStore) {
	t.Helper()
	registry := pipeline.NewRegistry()
	registry.Register(pipeline.StageValidate, pipeline.ValidateProcessor{})
	family := chunking.NewFamily()
	registry.Register(pipeline.StageChunk, pipeline.NewChunkProcessor(family))
	embedder := &fakeEmbedder{dim: 4}
	registry.Register(pipeline.StageEmbed, pipeline.NewEmbedProcessor(embedder, 16))
	store := newFakeVectorStore()
	registry.Register(pipeline.StageIndex, pipeline.NewIndexProcessor(store))
	docs := newFakeDocs()
	st := newFakeState()
	registry.Register(pipeline.StageFinalize, pipeline.NewFinalizeProcessor(docs, st))
	engine := pipeline.NewEngine(registry)

	an := analyzer.New(config.ParallelConfig{SizeThresholdB: 1 << 30, TokenThreshold: 1 << 30})
	incr := incremental.NewManager(family, embedder, store, docs, st, config.IncrementalConfig{ForceReprocessThreshold: 0.5})
	retriever := retrieval.New(store, embedder, nil, config.RetrievalConfig{})

	svc := New(
		&fakeStorage{files: files},
		an,
		engine,
		nil,
		incr,
		retriever,
		docs,
		st,
		store,
		embedder,
		nil,
		newFakeCache(),
		config.VectorStoreConfig{Collection: "docs", IndexManagement: "CREATE_IF_NOT_EXISTS"},
		config.ParallelConfig{},
	)
	return svc, docs, st, store
}

func TestIngest_SmallDocumentRunsSynchronousPipeline(t *testing.T) {
	content := "# Title\n\nSome short document text for the pipeline to chunk and embed.\n"
	svc, docs, st, store := newTestService(t, map[string][]byte{"doc.md": []byte(content)})

	result, err := svc.Ingest(context.Background(), "doc-1", "doc.md", map[string]any{"source": "test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusCompleted, result.Status)

	doc, ok, err := docs.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.DocumentStatusCompleted, doc.Status)

	_, ok, err = st.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, store.nodes)
}

// §8 "Concurrent re-ingest": a second ingest while the first holds the
// per-document lock fails with ErrDocumentBusy.
func TestIngest_ConcurrentReingestFailsBusy(t *testing.T) {
	content := "plain text document body.\n"
	svc, _, _, _ := newTestService(t, map[string][]byte{"doc.txt": []byte(content)})

	handle, ok, err := svc.lock.Acquire(context.Background(), "doc-busy")
	require.NoError(t, err)
	require.True(t, ok)
	defer svc.lock.Release(context.Background(), handle)

	_, err = svc.Ingest(context.Background(), "doc-busy", "doc.txt", nil, nil)
	assert.ErrorIs(t, err, model.ErrDocumentBusy)
}

func TestStatus_UnknownDocumentIsValidationError(t *testing.T) {
	svc, _, _, _ := newTestService(t, nil)
	_, err := svc.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestDelete_RemovesNodesStateAndRecord(t *testing.T) {
	content := "content to delete later.\n"
	svc, docs, st, store := newTestService(t, map[string][]byte{"doc.txt": []byte(content)})
	_, err := svc.Ingest(context.Background(), "doc-del", "doc.txt", nil, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "doc-del"))

	_, ok, _ := docs.Get(context.Background(), "doc-del")
	assert.False(t, ok)
	_, ok, _ = st.Get(context.Background(), "doc-del")
	assert.False(t, ok)
	for _, n := range store.nodes {
		assert.NotEqual(t, "doc-del", n.DocID)
	}
}

func TestCancel_MarksDocumentCanceling(t *testing.T) {
	content := "content for cancel test.\n"
	svc, docs, _, _ := newTestService(t, map[string][]byte{"doc.txt": []byte(content)})
	_, err := svc.Ingest(context.Background(), "doc-cancel", "doc.txt", nil, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), "doc-cancel"))

	doc, ok, _ := docs.Get(context.Background(), "doc-cancel")
	require.True(t, ok)
	assert.Equal(t, model.DocumentStatusCanceling, doc.Status)
}

func TestSearch_DelegatesToRetriever(t *testing.T) {
	content := "Milvus supports HNSW index for approximate nearest neighbor search.\n"
	svc, _, _, _ := newTestService(t, map[string][]byte{"doc.txt": []byte(content)})
	_, err := svc.Ingest(context.Background(), "doc-search", "doc.txt", nil, nil)
	require.NoError(t, err)

	results, err := svc.Search(context.Background(), retrieval.Query{Text: "HNSW index", TopK: 5, UseVector: true})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

