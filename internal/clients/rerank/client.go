// Package rerank completes the teacher's stub rerank client into the
// cross-encoder Reranker C10 step 5 consumes.
package rerank

import (
	"context"
	"fmt"

	"github.com/alleneee/docingest/internal/clients/base"
)

const ServiceName = "rerank"

// Passage is one candidate passed to the cross-encoder.
type Passage struct {
	ChunkID string
	Text    string
}

// ScoredPassage is a Passage with its cross-encoder relevance score.
type ScoredPassage struct {
	ChunkID string
	Score   float64
}

// Reranker is the cross-encoder contract C10 step 5 consumes.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []Passage) ([]ScoredPassage, error)
}

// Client calls a cross-encoder reranking endpoint (e.g. BGE-reranker,
// Cohere rerank, or a self-hosted TEI reranker) that accepts
// {query, documents[]} and returns per-document relevance scores.
type Client struct {
	httpClient *base.HTTPClient
	model      string
}

var _ Reranker = (*Client)(nil)

// NewClient builds a rerank Client.
func NewClient(cfg base.Config, model string) *Client {
	httpClient := base.NewHTTPClient(ServiceName, cfg)
	return &Client{httpClient: httpClient, model: model}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// Rerank scores each passage against query and returns them in the
// cross-encoder's score order (the caller re-sorts per the fused-score
// tiebreak rule of §4.9 step 5).
func (c *Client) Rerank(ctx context.Context, query string, passages []Passage) ([]ScoredPassage, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	docs := make([]string, len(passages))
	for i, p := range passages {
		docs[i] = p.Text
	}

	req := rerankRequest{Model: c.model, Query: query, Documents: docs}
	var resp rerankResponse
	if err := c.httpClient.Post(ctx, "/rerank", req, &resp); err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}

	out := make([]ScoredPassage, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(passages) {
			continue
		}
		out = append(out, ScoredPassage{ChunkID: passages[r.Index].ChunkID, Score: r.RelevanceScore})
	}
	return out, nil
}
