package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/alleneee/docingest/internal/model"
)

// PostgresStore implements Store over PostgreSQL + pgvector, following
// the teacher's connect-and-exec idiom (internal/adapters/postgres.go)
// generalized to a pool, and the `embedding <-> $n` distance-operator
// query shape used throughout the pack's other pgvector integration
// (intelligencedev-manifold's internal/sefii/engine.go and
// internal/agents/memory.go). Lexical search uses Postgres's built-in
// full-text search (to_tsvector/plainto_tsquery) rather than maintaining
// a separate token-mapping table, since a generation column keeps the
// index consistent automatically.
type PostgresStore struct {
	pool       *pgxpool.Pool
	collection string
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an already-connected pool. Collection names the
// logical table this adapter manages (one per deployment in practice).
func NewPostgresStore(pool *pgxpool.Pool, collection string) *PostgresStore {
	return &PostgresStore{pool: pool, collection: collection}
}

func (s *PostgresStore) table() string { return s.collection }

func (s *PostgresStore) EnsureCollection(ctx context.Context, name string, dim int, management IndexManagement) error {
	s.collection = name
	if management == NoValidation {
		return nil
	}

	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}

	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		chunk_id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		text TEXT NOT NULL,
		metadata JSONB DEFAULT '{}',
		content_hash TEXT NOT NULL,
		embedding vector(%d),
		text_fts tsvector GENERATED ALWAYS AS (to_tsvector('simple', text)) STORED,
		UNIQUE(doc_id, ordinal)
	);`, s.table(), dim)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}

	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_doc_id_idx ON %s(doc_id);`, s.table(), s.table())
	if _, err := s.pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("create doc_id index: %w", err)
	}
	ftsIdx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_fts_idx ON %s USING GIN(text_fts);`, s.table(), s.table())
	if _, err := s.pool.Exec(ctx, ftsIdx); err != nil {
		return fmt.Errorf("create fts index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, nodes []model.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, doc_id, ordinal, text, metadata, content_hash, embedding)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (chunk_id) DO UPDATE SET
			ordinal = EXCLUDED.ordinal,
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata,
			content_hash = EXCLUDED.content_hash,
			embedding = EXCLUDED.embedding`, s.table())

	for _, n := range nodes {
		metadataJSON, err := marshalJSON(n.Metadata)
		if err != nil {
			return fmt.Errorf("marshal node metadata: %w", err)
		}
		if _, err := tx.Exec(ctx, stmt, n.ChunkID, n.DocID, n.Ordinal, n.Text, metadataJSON,
			n.ContentHash, pgvector.NewVector(n.Embedding)); err != nil {
			return fmt.Errorf("upsert node %q: %w", n.ChunkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteByDoc(ctx context.Context, docID string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE doc_id = $1`, s.table())
	if _, err := s.pool.Exec(ctx, stmt, docID); err != nil {
		return fmt.Errorf("delete by doc %q: %w", docID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteByIDs(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE chunk_id = ANY($1)`, s.table())
	if _, err := s.pool.Exec(ctx, stmt, chunkIDs); err != nil {
		return fmt.Errorf("delete by ids: %w", err)
	}
	return nil
}

func (s *PostgresStore) VectorSearch(ctx context.Context, queryVector []float32, k int, filter Filter) ([]ScoredNode, error) {
	whereClause, args, err := filter.toSQL(2)
	if err != nil {
		return nil, err
	}
	where := "WHERE 1=1"
	if whereClause != "" {
		where += " AND " + whereClause
	}

	stmt := fmt.Sprintf(`
		SELECT chunk_id, doc_id, ordinal, text, metadata, content_hash, embedding <-> $1 AS distance
		FROM %s %s
		ORDER BY embedding <-> $1
		LIMIT %d`, s.table(), where, k)

	queryArgs := append([]any{pgvector.NewVector(queryVector)}, args...)
	rows, err := s.pool.Query(ctx, stmt, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []ScoredNode
	for rows.Next() {
		var (
			n            model.Node
			metadataJSON []byte
			distance     float64
		)
		if err := rows.Scan(&n.ChunkID, &n.DocID, &n.Ordinal, &n.Text, &metadataJSON, &n.ContentHash, &distance); err != nil {
			return nil, fmt.Errorf("scan vector search row: %w", err)
		}
		if err := unmarshalJSON(metadataJSON, &n.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal node metadata: %w", err)
		}
		// cosine/L2 distance is smaller-is-better; similarity score is
		// its complement, matching the [0,1]-ish range the retriever
		// normalizes further.
		out = append(out, ScoredNode{Node: n, Score: 1 / (1 + distance)})
	}
	return out, rows.Err()
}

func (s *PostgresStore) LexicalSearch(ctx context.Context, terms []string, k int, filter Filter) ([]ScoredNode, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	whereClause, args, err := filter.toSQL(2)
	if err != nil {
		return nil, err
	}
	where := "WHERE text_fts @@ plainto_tsquery('simple', $1)"
	if whereClause != "" {
		where += " AND " + whereClause
	}

	stmt := fmt.Sprintf(`
		SELECT chunk_id, doc_id, ordinal, text, metadata, content_hash,
			ts_rank(text_fts, plainto_tsquery('simple', $1)) AS rank
		FROM %s %s
		ORDER BY rank DESC
		LIMIT %d`, s.table(), where, k)

	query := joinTerms(terms)
	queryArgs := append([]any{query}, args...)
	rows, err := s.pool.Query(ctx, stmt, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var out []ScoredNode
	for rows.Next() {
		var (
			n            model.Node
			metadataJSON []byte
			rank         float64
		)
		if err := rows.Scan(&n.ChunkID, &n.DocID, &n.Ordinal, &n.Text, &metadataJSON, &n.ContentHash, &rank); err != nil {
			return nil, fmt.Errorf("scan lexical search row: %w", err)
		}
		if err := unmarshalJSON(metadataJSON, &n.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal node metadata: %w", err)
		}
		out = append(out, ScoredNode{Node: n, Score: rank})
	}
	return out, rows.Err()
}

func (s *PostgresStore) NodeCount(ctx context.Context, docID string) (int, error) {
	stmt := fmt.Sprintf(`SELECT count(*) FROM %s WHERE doc_id = $1`, s.table())
	var count int
	if err := s.pool.QueryRow(ctx, stmt, docID).Scan(&count); err != nil {
		return 0, fmt.Errorf("node count for %q: %w", docID, err)
	}
	return count, nil
}

func joinTerms(terms []string) string {
	out := terms[0]
	for _, t := range terms[1:] {
		out += " " + t
	}
	return out
}
