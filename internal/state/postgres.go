package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alleneee/docingest/internal/model"
)

// PostgresStore implements DocumentStore (PostgresStateStore below is
// the StateStore) against the
// "Document table" / "DocumentState blob" logical layout of §6, following
// the teacher's pgx connection-and-exec idiom (internal/adapters/postgres.go)
// generalized from a single *pgx.Conn to a pool so concurrent segment
// tasks (C7) can finalize independently.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	const createDocuments = `
	CREATE TABLE IF NOT EXISTS documents (
		doc_id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		file_type TEXT NOT NULL,
		metadata JSONB DEFAULT '{}',
		status TEXT NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		node_count INTEGER NOT NULL DEFAULT 0,
		last_processed_at TIMESTAMPTZ,
		error TEXT
	);`

	const createDocumentState = `
	CREATE TABLE IF NOT EXISTS document_state (
		doc_id TEXT PRIMARY KEY REFERENCES documents(doc_id) ON DELETE CASCADE,
		file_hash TEXT NOT NULL,
		chunk_hashes JSONB NOT NULL DEFAULT '[]',
		chunk_ids JSONB NOT NULL DEFAULT '[]',
		last_processed_at TIMESTAMPTZ,
		metadata_snapshot JSONB DEFAULT '{}'
	);`

	if _, err := s.pool.Exec(ctx, createDocuments); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	if _, err := s.pool.Exec(ctx, createDocumentState); err != nil {
		return fmt.Errorf("create document_state table: %w", err)
	}
	return nil
}

// Close releases the pool; bound to fx.Lifecycle.OnStop by the wiring.
func (s *PostgresStore) Close() { s.pool.Close() }

// Pool exposes the underlying connection pool so the vector store (C5)
// can share it instead of opening a second connection to the same
// database.
func (s *PostgresStore) Pool() *pgxpool.Pool { return s.pool }

func (s *PostgresStore) Create(ctx context.Context, doc model.Document) error {
	metadataJSON, err := marshalJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal document metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (doc_id, source_path, file_type, metadata, status, size_bytes, node_count, last_processed_at, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (doc_id) DO UPDATE SET
			source_path = EXCLUDED.source_path,
			file_type = EXCLUDED.file_type,
			metadata = EXCLUDED.metadata,
			status = EXCLUDED.status,
			size_bytes = EXCLUDED.size_bytes`,
		doc.DocID, doc.SourcePath, string(doc.FileType), metadataJSON, string(doc.Status),
		doc.SizeBytes, doc.NodeCount, nullTime(doc.LastProcessedAt), doc.Error)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, docID string) (model.Document, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT doc_id, source_path, file_type, metadata, status, size_bytes, node_count, last_processed_at, error
		FROM documents WHERE doc_id = $1`, docID)

	var (
		doc          model.Document
		fileType     string
		status       string
		metadataJSON []byte
		lastProc     *time.Time
		errMsg       *string
	)
	err := row.Scan(&doc.DocID, &doc.SourcePath, &fileType, &metadataJSON, &status,
		&doc.SizeBytes, &doc.NodeCount, &lastProc, &errMsg)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Document{}, false, nil
	}
	if err != nil {
		return model.Document{}, false, fmt.Errorf("get document: %w", err)
	}

	doc.FileType = model.FileType(fileType)
	doc.Status = model.DocumentStatus(status)
	if lastProc != nil {
		doc.LastProcessedAt = *lastProc
	}
	if errMsg != nil {
		doc.Error = *errMsg
	}
	if err := unmarshalJSON(metadataJSON, &doc.Metadata); err != nil {
		return model.Document{}, false, fmt.Errorf("unmarshal document metadata: %w", err)
	}
	return doc, true, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, docID string, status model.DocumentStatus, nodeCount int, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents SET status = $2, node_count = $3, error = NULLIF($4, ''), last_processed_at = now()
		WHERE doc_id = $1`, docID, string(status), nodeCount, errMsg)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, docID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// PostgresStateStore implements StateStore against the same schema,
// split into its own type because Go cannot overload Get/Put/Delete with
// a different return type on PostgresStore.
type PostgresStateStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStateStore shares the pool owned by a PostgresStore.
func NewPostgresStateStore(s *PostgresStore) *PostgresStateStore {
	return &PostgresStateStore{pool: s.pool}
}

func (s *PostgresStateStore) Get(ctx context.Context, docID string) (model.DocumentState, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT doc_id, file_hash, chunk_hashes, chunk_ids, last_processed_at, metadata_snapshot
		FROM document_state WHERE doc_id = $1`, docID)

	var (
		st                model.DocumentState
		chunkHashesJSON   []byte
		chunkIDsJSON      []byte
		metadataJSON      []byte
		lastProc          *time.Time
	)
	err := row.Scan(&st.DocID, &st.FileHash, &chunkHashesJSON, &chunkIDsJSON, &lastProc, &metadataJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DocumentState{}, false, nil
	}
	if err != nil {
		return model.DocumentState{}, false, fmt.Errorf("get document state: %w", err)
	}
	if lastProc != nil {
		st.LastProcessedAt = *lastProc
	}
	if err := unmarshalJSON(chunkHashesJSON, &st.ChunkHashes); err != nil {
		return model.DocumentState{}, false, fmt.Errorf("unmarshal chunk hashes: %w", err)
	}
	if err := unmarshalJSON(chunkIDsJSON, &st.ChunkIDs); err != nil {
		return model.DocumentState{}, false, fmt.Errorf("unmarshal chunk ids: %w", err)
	}
	if err := unmarshalJSON(metadataJSON, &st.MetadataSnapshot); err != nil {
		return model.DocumentState{}, false, fmt.Errorf("unmarshal metadata snapshot: %w", err)
	}
	return st, true, nil
}

func (s *PostgresStateStore) Put(ctx context.Context, st model.DocumentState) error {
	chunkHashesJSON, err := marshalJSON(st.ChunkHashes)
	if err != nil {
		return fmt.Errorf("marshal chunk hashes: %w", err)
	}
	chunkIDsJSON, err := marshalJSON(st.ChunkIDs)
	if err != nil {
		return fmt.Errorf("marshal chunk ids: %w", err)
	}
	metadataJSON, err := marshalJSON(st.MetadataSnapshot)
	if err != nil {
		return fmt.Errorf("marshal metadata snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO document_state (doc_id, file_hash, chunk_hashes, chunk_ids, last_processed_at, metadata_snapshot)
		VALUES ($1,$2,$3,$4,now(),$5)
		ON CONFLICT (doc_id) DO UPDATE SET
			file_hash = EXCLUDED.file_hash,
			chunk_hashes = EXCLUDED.chunk_hashes,
			chunk_ids = EXCLUDED.chunk_ids,
			last_processed_at = now(),
			metadata_snapshot = EXCLUDED.metadata_snapshot`,
		st.DocID, st.FileHash, chunkHashesJSON, chunkIDsJSON, metadataJSON)
	if err != nil {
		return fmt.Errorf("put document state: %w", err)
	}
	return nil
}

func (s *PostgresStateStore) Delete(ctx context.Context, docID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM document_state WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("delete document state: %w", err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
