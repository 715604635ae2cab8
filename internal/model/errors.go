// Package model holds the data types shared across the ingestion and
// retrieval core: documents, chunks, processing plans, segments, task
// records, and the error taxonomy of §7.
package model

import (
	"errors"
	"fmt"
)

// Error taxonomy (§7). These are sentinels, not types: callers compare
// with errors.Is and wrap with context using fmt.Errorf("...: %w", err).
var (
	// ErrValidation covers unsupported file types, empty files, and
	// malformed input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrUnsupportedFileType is a specific ErrValidation case raised by
	// the analyzer when no fallback text extraction succeeds.
	ErrUnsupportedFileType = fmt.Errorf("%w: unsupported file type", ErrValidation)

	// ErrEmbedTransient signals a retryable embedding-service failure
	// (network, quota). Retried with backoff up to max_retries.
	ErrEmbedTransient = errors.New("embedding service: transient error")

	// ErrEmbedFatal signals a non-retryable embedding-service failure
	// (dimension mismatch, schema violation).
	ErrEmbedFatal = errors.New("embedding service: fatal error")

	// ErrStoreTransient signals a retryable vector-store failure.
	ErrStoreTransient = errors.New("vector store: transient error")

	// ErrStoreFatal signals a non-retryable vector-store failure.
	ErrStoreFatal = errors.New("vector store: fatal error")

	// ErrBrokerTransient signals a retryable task-broker failure.
	ErrBrokerTransient = errors.New("task broker: transient error")

	// ErrSegmentFailure marks a segment task that failed after
	// exhausting retries; the executor decides rollback vs. partial.
	ErrSegmentFailure = errors.New("segment processing failed")

	// ErrIncrementalConflict surfaces as DocumentBusy to callers; it is
	// retryable.
	ErrIncrementalConflict = errors.New("incremental update conflict")

	// ErrDocumentBusy is returned when a document is already being
	// processed under its per-document lock (§5).
	ErrDocumentBusy = errors.New("document is busy")

	// ErrCanceled marks cooperative cancellation; terminal for the
	// current attempt.
	ErrCanceled = errors.New("operation canceled")

	// ErrInvalidQuery is raised by the retriever for an empty query. The
	// query length is not checked, so an overlong query is not rejected.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUnsupportedFilter is raised by the vector store adapter when a
	// retrieval filter uses a predicate outside the shared subset
	// (equality and `in`); see SPEC_FULL.md §6 Open Questions.
	ErrUnsupportedFilter = errors.New("unsupported filter predicate")
)
