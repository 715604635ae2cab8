package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
)

// TTLs for each cached concern, named the way the teacher's CacheService
// named its constants.
const (
	DefaultTTL           = 1 * time.Hour
	EmbeddingCacheTTL    = 24 * time.Hour
	DocumentCacheTTL     = 6 * time.Hour
	SearchResultCacheTTL = 30 * time.Minute
	TaskResultCacheTTL   = 24 * time.Hour
)

// Service wraps Client with the cache concerns the ingestion and
// retrieval core needs: embeddings, documents, search results, and
// broker task results (§4.7 "result persistence with TTL").
type Service struct {
	client Client
}

// NewService builds a Service over an already-connected Client.
func NewService(client Client) *Service {
	return &Service{client: client}
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum)
}

func (s *Service) CacheEmbedding(ctx context.Context, text string, embedding []float32) error {
	key := fmt.Sprintf("embedding:%s", hashText(text))
	return s.client.SetJSON(ctx, key, embedding, EmbeddingCacheTTL)
}

func (s *Service) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := fmt.Sprintf("embedding:%s", hashText(text))
	var embedding []float32
	if err := s.client.GetJSON(ctx, key, &embedding); err != nil {
		return nil, err
	}
	return embedding, nil
}

func (s *Service) CacheSearchResults(ctx context.Context, query string, results any) error {
	key := fmt.Sprintf("search:%s", hashText(query))
	return s.client.SetJSON(ctx, key, results, SearchResultCacheTTL)
}

func (s *Service) GetSearchResults(ctx context.Context, query string, dest any) error {
	key := fmt.Sprintf("search:%s", hashText(query))
	return s.client.GetJSON(ctx, key, dest)
}

func (s *Service) CacheDocument(ctx context.Context, docID string, document any) error {
	key := fmt.Sprintf("doc:%s", docID)
	return s.client.SetJSON(ctx, key, document, DocumentCacheTTL)
}

func (s *Service) GetDocument(ctx context.Context, docID string, dest any) error {
	key := fmt.Sprintf("doc:%s", docID)
	return s.client.GetJSON(ctx, key, dest)
}

func (s *Service) InvalidateDocument(ctx context.Context, docID string) error {
	return s.client.Delete(ctx, fmt.Sprintf("doc:%s", docID))
}

// CacheTaskResult persists a broker task result keyed by task_id, backing
// C9's "result persistence with TTL" requirement.
func (s *Service) CacheTaskResult(ctx context.Context, taskID string, result any) error {
	key := fmt.Sprintf("task_result:%s", taskID)
	return s.client.SetJSON(ctx, key, result, TaskResultCacheTTL)
}

func (s *Service) GetTaskResult(ctx context.Context, taskID string, dest any) error {
	key := fmt.Sprintf("task_result:%s", taskID)
	return s.client.GetJSON(ctx, key, dest)
}
