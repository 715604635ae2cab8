package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alleneee/docingest/internal/chunking"
	"github.com/alleneee/docingest/internal/config"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/vectorstore"
)

type fakeEmbedder struct {
	dim     int
	failAt  string // embedding fails if any text equals this marker
	calls   int
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	for _, t := range texts {
		if f.failAt != "" && strings.Contains(t, f.failAt) {
			return nil, fmt.Errorf("%w: embedding backend rejected input", model.ErrEmbedFatal)
		}
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, f.dim)
	}
	return vecs, nil
}

type fakeStore struct {
	nodes map[string]model.Node
}

func newFakeStore() *fakeStore { return &fakeStore{nodes: map[string]model.Node{}} }

func (f *fakeStore) EnsureCollection(context.Context, string, int, vectorstore.IndexManagement) error {
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, nodes []model.Node) error {
	for _, n := range nodes {
		f.nodes[n.ChunkID] = n
	}
	return nil
}

func (f *fakeStore) DeleteByDoc(_ context.Context, docID string) error {
	for id, n := range f.nodes {
		if n.DocID == docID {
			delete(f.nodes, id)
		}
	}
	return nil
}

func (f *fakeStore) DeleteByIDs(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(f.nodes, id)
	}
	return nil
}

func (f *fakeStore) VectorSearch(context.Context, []float32, int, vectorstore.Filter) ([]vectorstore.ScoredNode, error) {
	return nil, nil
}

func (f *fakeStore) LexicalSearch(context.Context, []string, int, vectorstore.Filter) ([]vectorstore.ScoredNode, error) {
	return nil, nil
}

func (f *fakeStore) NodeCount(_ context.Context, docID string) (int, error) {
	n := 0
	for _, node := range f.nodes {
		if node.DocID == docID {
			n++
		}
	}
	return n, nil
}

type fakeDocs struct {
	status    model.DocumentStatus
	nodeCount int
	errMsg    string
}

func (f *fakeDocs) Create(context.Context, model.Document) error { return nil }

func (f *fakeDocs) Get(context.Context, string) (model.Document, bool, error) {
	return model.Document{}, false, nil
}

func (f *fakeDocs) UpdateStatus(_ context.Context, _ string, status model.DocumentStatus, nodeCount int, errMsg string) error {
	f.status = status
	f.nodeCount = nodeCount
	f.errMsg = errMsg
	return nil
}

func (f *fakeDocs) Delete(context.Context, string) error { return nil }

type fakeState struct {
	put *model.DocumentState
}

func (f *fakeState) Get(context.Context, string) (model.DocumentState, bool, error) {
	return model.DocumentState{}, false, nil
}

func (f *fakeState) Put(_ context.Context, s model.DocumentState) error {
	f.put = &s
	return nil
}

func (f *fakeState) Delete(context.Context, string) error { return nil }

func repeatParagraphs(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Paragraph number %d holds a handful of plain sentences. It says nothing special. It just takes up space.\n\n", i)
	}
	return b.String()
}

// §8 scenario 3: a large document split into multiple segments ends up
// with contiguous ordinals and a completed status.
func TestExecuteLocal_ContiguousOrdinalsAcrossSegments(t *testing.T) {
	family := chunking.NewFamily()
	embedder := &fakeEmbedder{dim: 8}
	store := newFakeStore()
	docs := &fakeDocs{}
	st := &fakeState{}

	exec := NewExecutor(family, embedder, store, docs, st, nil, config.ParallelConfig{MaxWorkers: 4})

	text := repeatParagraphs(40)
	plan := model.ProcessingPlan{
		SegmentSize: 600,
		Chunking: model.ChunkingParams{
			Kind:      model.ChunkingSentence,
			ChunkSize: 200,
		},
	}

	outcome, err := exec.ExecuteLocal(context.Background(), "doc-large", []byte(text), text, plan, map[string]any{"source": "test"}, false)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusCompleted, outcome.Status)
	assert.Equal(t, model.DocumentStatusCompleted, docs.status)
	assert.Equal(t, outcome.NodeCount, docs.nodeCount)
	require.NotNil(t, st.put)
	assert.Len(t, st.put.ChunkIDs, outcome.NodeCount)

	ordinals := make(map[int]bool)
	for _, n := range store.nodes {
		assert.False(t, ordinals[n.Ordinal], "duplicate ordinal %d", n.Ordinal)
		ordinals[n.Ordinal] = true
	}
	for i := 0; i < len(ordinals); i++ {
		assert.True(t, ordinals[i], "missing ordinal %d, contiguity broken", i)
	}
}

// §8 scenario 4: a fatal embedding error on one segment of a brand-new
// document rolls the whole ingest back to zero persisted chunks and a
// failed status.
func TestExecuteLocal_FatalSegmentFailureRollsBack(t *testing.T) {
	family := chunking.NewFamily()
	embedder := &fakeEmbedder{dim: 8, failAt: "BOOM_MARKER"}
	store := newFakeStore()
	docs := &fakeDocs{}
	st := &fakeState{}

	exec := NewExecutor(family, embedder, store, docs, st, nil, config.ParallelConfig{MaxWorkers: 4})

	text := repeatParagraphs(10) + "This paragraph contains BOOM_MARKER and nothing else of note.\n\n" + repeatParagraphs(10)
	plan := model.ProcessingPlan{
		SegmentSize: 300,
		Chunking: model.ChunkingParams{
			Kind:      model.ChunkingSentence,
			ChunkSize: 150,
		},
	}

	outcome, err := exec.ExecuteLocal(context.Background(), "doc-fatal", []byte(text), text, plan, nil, false)
	require.Error(t, err)
	assert.Equal(t, model.DocumentStatusFailed, outcome.Status)
	assert.Equal(t, model.DocumentStatusFailed, docs.status)
	assert.Empty(t, store.nodes, "rollback must leave zero persisted chunks")
	assert.Nil(t, st.put, "document state must not be written when the ingest fails")
}

// §4.6 step 4 allow_partial branch: a fatal failure on one segment
// keeps the other segments' chunks and marks the document partial.
func TestExecuteLocal_AllowPartialKeepsSucceededSegments(t *testing.T) {
	family := chunking.NewFamily()
	embedder := &fakeEmbedder{dim: 8, failAt: "BOOM_MARKER"}
	store := newFakeStore()
	docs := &fakeDocs{}
	st := &fakeState{}

	exec := NewExecutor(family, embedder, store, docs, st, nil, config.ParallelConfig{MaxWorkers: 4})

	text := repeatParagraphs(10) + "This paragraph contains BOOM_MARKER and nothing else of note.\n\n" + repeatParagraphs(10)
	plan := model.ProcessingPlan{
		SegmentSize: 300,
		Chunking: model.ChunkingParams{
			Kind:      model.ChunkingSentence,
			ChunkSize: 150,
		},
	}

	outcome, err := exec.ExecuteLocal(context.Background(), "doc-partial", []byte(text), text, plan, nil, true)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusPartial, outcome.Status)
	assert.Equal(t, model.DocumentStatusPartial, docs.status)
	assert.NotEmpty(t, store.nodes, "succeeded segments must keep their chunks under allow_partial")
}
