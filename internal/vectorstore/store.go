// Package vectorstore implements the Vector Index Adapter (C5): upsert,
// delete, vector search, and lexical search over persisted Nodes (§4.4).
package vectorstore

import (
	"context"

	"github.com/alleneee/docingest/internal/model"
)

// IndexManagement selects ensure_collection's behavior at startup (§4.4, §6).
type IndexManagement string

const (
	CreateIfNotExists IndexManagement = "CREATE_IF_NOT_EXISTS"
	NoValidation      IndexManagement = "NO_VALIDATION"
)

// ScoredNode is one hit from a vector or lexical search.
type ScoredNode struct {
	model.Node
	Score float64
}

// Store is C5's exclusive-ownership contract over persisted Nodes (§3, §4.4).
type Store interface {
	// EnsureCollection prepares the backing collection/table for the
	// given fixed embedding dimension, per management.
	EnsureCollection(ctx context.Context, name string, dim int, management IndexManagement) error

	// Upsert inserts or replaces nodes by chunk_id. Idempotent: upserting
	// the same node twice leaves the store unchanged after the second
	// call (§8 Idempotence).
	Upsert(ctx context.Context, nodes []model.Node) error

	DeleteByDoc(ctx context.Context, docID string) error
	DeleteByIDs(ctx context.Context, chunkIDs []string) error

	VectorSearch(ctx context.Context, queryVector []float32, k int, filter Filter) ([]ScoredNode, error)

	// LexicalSearch is available when the backend supports keyword
	// search; callers skip it when the retriever's use_lexical flag is
	// false (§4.9).
	LexicalSearch(ctx context.Context, terms []string, k int, filter Filter) ([]ScoredNode, error)

	// NodeCount returns the number of persisted nodes for docID, used to
	// validate the node_count invariant (§3) after finalize.
	NodeCount(ctx context.Context, docID string) (int, error)
}
