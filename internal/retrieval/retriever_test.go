package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alleneee/docingest/internal/clients/rerank"
	"github.com/alleneee/docingest/internal/config"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/vectorstore"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Dimension() int { return f.dim }
func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, f.dim)
	}
	return vecs, nil
}

type fakeStore struct {
	vectorHits  []vectorstore.ScoredNode
	lexicalHits []vectorstore.ScoredNode
}

func (f *fakeStore) EnsureCollection(context.Context, string, int, vectorstore.IndexManagement) error {
	return nil
}
func (f *fakeStore) Upsert(context.Context, []model.Node) error   { return nil }
func (f *fakeStore) DeleteByDoc(context.Context, string) error    { return nil }
func (f *fakeStore) DeleteByIDs(context.Context, []string) error  { return nil }
func (f *fakeStore) VectorSearch(context.Context, []float32, int, vectorstore.Filter) ([]vectorstore.ScoredNode, error) {
	return f.vectorHits, nil
}
func (f *fakeStore) LexicalSearch(context.Context, []string, int, vectorstore.Filter) ([]vectorstore.ScoredNode, error) {
	return f.lexicalHits, nil
}
func (f *fakeStore) NodeCount(context.Context, string) (int, error) { return 0, nil }

func node(chunkID, text string, score float64) vectorstore.ScoredNode {
	return vectorstore.ScoredNode{Node: model.Node{ChunkID: chunkID, DocID: "doc-1", Text: text}, Score: score}
}

// §8 hybrid query scenario: a chunk about "Milvus supports HNSW index"
// ranks first for the query "HNSW index" under w_v=0.7/w_l=0.3, with
// fused_score >= 0.9.
func TestSearch_HybridFusionRanksExactMatchFirst(t *testing.T) {
	store := &fakeStore{
		vectorHits: []vectorstore.ScoredNode{
			node("chunk-hnsw", "Milvus supports HNSW index for approximate nearest neighbor search.", 0.95),
			node("chunk-other", "Postgres supports B-tree indexes for exact lookups.", 0.40),
		},
		lexicalHits: []vectorstore.ScoredNode{
			node("chunk-hnsw", "Milvus supports HNSW index for approximate nearest neighbor search.", 0.90),
			node("chunk-other", "Postgres supports B-tree indexes for exact lookups.", 0.10),
		},
	}
	r := New(store, &fakeEmbedder{dim: 4}, nil, config.RetrievalConfig{WeightVector: 0.7, WeightLexical: 0.3})

	results, err := r.Search(context.Background(), Query{Text: "HNSW index", TopK: 5, UseVector: true, UseLexical: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "chunk-hnsw", results[0].ChunkID)
	assert.GreaterOrEqual(t, results[0].FusedScore, 0.9)
}

func TestSearch_ResultOnlyInOneListScoresZeroInTheOther(t *testing.T) {
	store := &fakeStore{
		vectorHits: []vectorstore.ScoredNode{node("chunk-a", "vector only hit", 0.8)},
		lexicalHits: []vectorstore.ScoredNode{node("chunk-b", "lexical only hit", 0.8)},
	}
	r := New(store, &fakeEmbedder{dim: 4}, nil, config.RetrievalConfig{WeightVector: 0.7, WeightLexical: 0.3})

	results, err := r.Search(context.Background(), Query{Text: "query", TopK: 5, UseVector: true, UseLexical: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	byID := map[string]Result{}
	for _, res := range results {
		byID[res.ChunkID] = res
	}
	assert.Zero(t, byID["chunk-a"].LexicalScore)
	assert.Zero(t, byID["chunk-b"].VectorScore)
}

func TestSearch_RerankReordersWithinTopN(t *testing.T) {
	store := &fakeStore{
		vectorHits: []vectorstore.ScoredNode{
			node("chunk-a", "alpha", 0.9),
			node("chunk-b", "beta", 0.85),
		},
	}
	reranker := &fakeReranker{scores: map[string]float64{"chunk-a": 0.1, "chunk-b": 0.99}}
	r := New(store, &fakeEmbedder{dim: 4}, reranker, config.RetrievalConfig{WeightVector: 1, RerankTopN: 2})

	results, err := r.Search(context.Background(), Query{Text: "query", TopK: 5, UseVector: true, Rerank: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "chunk-b", results[0].ChunkID)
	assert.True(t, results[0].Reranked)
}

type fakeReranker struct{ scores map[string]float64 }

func (f *fakeReranker) Rerank(_ context.Context, _ string, passages []rerank.Passage) ([]rerank.ScoredPassage, error) {
	out := make([]rerank.ScoredPassage, len(passages))
	for i, p := range passages {
		out[i] = rerank.ScoredPassage{ChunkID: p.ChunkID, Score: f.scores[p.ChunkID]}
	}
	return out, nil
}
