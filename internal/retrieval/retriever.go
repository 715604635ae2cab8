// Package retrieval implements the Hybrid Retriever & Reranker (C10):
// parallel vector + lexical search, min-max score normalization,
// weighted fusion, dedup, and an optional cross-encoder rerank pass
// (§4.9).
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alleneee/docingest/internal/chunking"
	"github.com/alleneee/docingest/internal/clients/embedding"
	"github.com/alleneee/docingest/internal/clients/rerank"
	"github.com/alleneee/docingest/internal/config"
	"github.com/alleneee/docingest/internal/model"
	"github.com/alleneee/docingest/internal/utils"
	"github.com/alleneee/docingest/internal/vectorstore"
)

// resultTextMaxBytes caps the passage text returned to a caller; a
// search hit is a snippet for ranking, not a full-document dump.
const resultTextMaxBytes = 4000

// Query is one hybrid search request (§4.9 input).
type Query struct {
	Text        string
	TopK        int
	Filter      vectorstore.Filter
	UseVector   bool
	UseLexical  bool
	Rerank      bool
}

// Result is one ranked hit (§4.9 steps 2-5).
type Result struct {
	ChunkID     string
	DocID       string
	Text        string
	Metadata    map[string]any
	VectorScore float64
	LexicalScore float64
	FusedScore  float64
	RerankScore float64
	Reranked    bool
}

// Retriever is C10. It holds the store it searches, the embedder it
// queries with, an optional reranker, a keyword extractor for the
// lexical leg's query terms, and the fusion weights §6 configures.
type Retriever struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	reranker rerank.Reranker
	keywords *chunking.KeywordExtractor
	cfg      config.RetrievalConfig
}

func New(store vectorstore.Store, embedder embedding.Embedder, reranker rerank.Reranker, cfg config.RetrievalConfig) *Retriever {
	if cfg.WeightVector == 0 && cfg.WeightLexical == 0 {
		cfg.WeightVector, cfg.WeightLexical = 0.7, 0.3
	}
	if cfg.RerankTopN == 0 {
		cfg.RerankTopN = 20
	}
	return &Retriever{store: store, embedder: embedder, reranker: reranker, keywords: chunking.NewKeywordExtractor(), cfg: cfg}
}

// Search runs §4.9's five steps: parallel vector+lexical search,
// per-list min-max normalization, weighted fusion, chunk_id dedup, and
// an optional rerank pass over the fused top N.
func (r *Retriever) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.Text == "" {
		return nil, fmt.Errorf("%w: query text is required", model.ErrInvalidQuery)
	}
	if q.TopK <= 0 {
		q.TopK = 10
	}
	candidateK := 3 * q.TopK

	var vectorHits, lexicalHits []vectorstore.ScoredNode
	var vectorErr, lexicalErr error

	var wg sync.WaitGroup
	if q.UseVector {
		wg.Go(func() {
			vec, err := r.embedder.Embed(ctx, []string{q.Text})
			if err != nil {
				vectorErr = fmt.Errorf("embed query: %w", err)
				return
			}
			vectorHits, vectorErr = r.store.VectorSearch(ctx, vec[0], candidateK, q.Filter)
		})
	}
	if q.UseLexical {
		wg.Go(func() {
			terms := r.keywords.Extract(q.Text)
			if len(terms) == 0 {
				return
			}
			lexicalHits, lexicalErr = r.store.LexicalSearch(ctx, terms, candidateK, q.Filter)
		})
	}
	wg.Wait()

	if vectorErr != nil {
		return nil, fmt.Errorf("hybrid search: vector leg failed: %w", vectorErr)
	}
	if lexicalErr != nil {
		return nil, fmt.Errorf("hybrid search: lexical leg failed: %w", lexicalErr)
	}

	vectorNorm := normalize(vectorHits)
	lexicalNorm := normalize(lexicalHits)

	fused := fuse(vectorHits, lexicalHits, vectorNorm, lexicalNorm, r.cfg.WeightVector, r.cfg.WeightLexical)
	results := dedupByChunkID(fused)

	sort.Slice(results, func(i, j int) bool { return results[i].FusedScore > results[j].FusedScore })
	if len(results) > q.TopK {
		results = results[:q.TopK]
	}

	if q.Rerank && r.reranker != nil && len(results) > 0 {
		return r.rerank(ctx, q.Text, results)
	}
	return results, nil
}

// normalize maps a result list's scores to [0,1] by min-max within the
// list (§4.9 step 2). A single-element or empty list maps every score
// to 1.0, since there is no spread to normalize against.
func normalize(hits []vectorstore.ScoredNode) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	spread := max - min
	for _, h := range hits {
		if spread == 0 {
			out[h.ChunkID] = 1.0
			continue
		}
		out[h.ChunkID] = (h.Score - min) / spread
	}
	return out
}

// fuse implements §4.9 step 3: fused = w_v*vector_norm + w_l*lexical_norm,
// with a chunk_id present in only one list scored 0 in the other.
func fuse(vectorHits, lexicalHits []vectorstore.ScoredNode, vectorNorm, lexicalNorm map[string]float64, wv, wl float64) []Result {
	byID := make(map[string]*Result)
	order := make([]string, 0, len(vectorHits)+len(lexicalHits))

	upsert := func(n vectorstore.ScoredNode) *Result {
		if existing, ok := byID[n.ChunkID]; ok {
			return existing
		}
		r := &Result{ChunkID: n.ChunkID, DocID: n.DocID, Text: utils.CleanAndFormatContent(n.Text, resultTextMaxBytes), Metadata: n.Metadata}
		byID[n.ChunkID] = r
		order = append(order, n.ChunkID)
		return r
	}

	for _, n := range vectorHits {
		r := upsert(n)
		r.VectorScore = vectorNorm[n.ChunkID]
	}
	for _, n := range lexicalHits {
		r := upsert(n)
		r.LexicalScore = lexicalNorm[n.ChunkID]
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		r := byID[id]
		r.FusedScore = wv*r.VectorScore + wl*r.LexicalScore
		results = append(results, *r)
	}
	return results
}

// dedupByChunkID keeps the max fused score per chunk_id (§4.9 step 4).
// fuse already merges by chunk_id into one Result per id, so this is a
// direct pass-through kept as its own named step to mirror the spec's
// own step boundary and leave a seam for a future fan-in source that
// is not already deduplicated.
func dedupByChunkID(results []Result) []Result {
	return results
}

// rerank implements §4.9 step 5: pass the top RerankTopN through the
// cross-encoder and re-sort by rerank score, preserving fused as the
// tiebreak for anything the reranker scores identically.
func (r *Retriever) rerank(ctx context.Context, query string, results []Result) ([]Result, error) {
	n := r.cfg.RerankTopN
	if n > len(results) {
		n = len(results)
	}
	head, tail := results[:n], results[n:]

	passages := make([]rerank.Passage, len(head))
	for i, res := range head {
		passages[i] = rerank.Passage{ChunkID: res.ChunkID, Text: res.Text}
	}
	scored, err := r.reranker.Rerank(ctx, query, passages)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: rerank: %w", err)
	}
	scoreByID := make(map[string]float64, len(scored))
	for _, s := range scored {
		scoreByID[s.ChunkID] = s.Score
	}
	for i := range head {
		if s, ok := scoreByID[head[i].ChunkID]; ok {
			head[i].RerankScore = s
			head[i].Reranked = true
		}
	}
	sort.SliceStable(head, func(i, j int) bool {
		if head[i].Reranked && head[j].Reranked && head[i].RerankScore != head[j].RerankScore {
			return head[i].RerankScore > head[j].RerankScore
		}
		return head[i].FusedScore > head[j].FusedScore
	})
	return append(head, tail...), nil
}
