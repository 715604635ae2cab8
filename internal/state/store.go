// Package state is C1's persisted record keeper: it owns the Document
// table and the DocumentState blob exclusively (§3). The per-document
// lock is not here; it lives in internal/cache.
package state

import (
	"context"

	"github.com/alleneee/docingest/internal/model"
)

// DocumentStore is the metadata store contract of §6: "CRUD over
// Document records; per-document lock support (or optimistic
// compare-and-set on status)."
type DocumentStore interface {
	Create(ctx context.Context, doc model.Document) error
	Get(ctx context.Context, docID string) (model.Document, bool, error)
	UpdateStatus(ctx context.Context, docID string, status model.DocumentStatus, nodeCount int, errMsg string) error
	Delete(ctx context.Context, docID string) error
}

// StateStore is C1's own record, §3 DocumentState: "created on first
// successful ingest; updated atomically on each completed (re)ingest;
// deleted on document purge."
type StateStore interface {
	Get(ctx context.Context, docID string) (model.DocumentState, bool, error)
	Put(ctx context.Context, s model.DocumentState) error
	Delete(ctx context.Context, docID string) error
}
