// Package embedding implements the Embedder Client contract of §4.3:
// embed(batch) -> fixed-dimension vectors, with transient/fatal error
// classification and bounded-batch, backoff-retried calls.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/alleneee/docingest/internal/clients/base"
	"github.com/alleneee/docingest/internal/model"
)

const ServiceName = "embedding"

// Embedder is C4's contract. Implementations must fail a whole batch
// call with model.ErrEmbedTransient (network/quota, retryable) or
// model.ErrEmbedFatal (dimension mismatch, schema violation).
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config mirrors config.EmbeddingConfig, kept separate so this package
// does not import internal/config.
type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Dim         int
	BatchMax    int
	MaxRetries  uint
	RetryJitter time.Duration
}

// Client is an OpenAI-compatible embedding client, covering the
// `provider ∈ {openai, dashscope, custom}` surface of §6 — dashscope and
// most self-hosted embedding servers (vLLM, TEI, Xinference) speak the
// same `/embeddings` request/response shape the teacher's client used.
type Client struct {
	httpClient *base.HTTPClient
	cfg        Config
}

var _ Embedder = (*Client)(nil)

// NewClient builds a Client. cfg.BatchMax bounds EMBED_BATCH_MAX (§6);
// cfg.Dim is the fixed per-deployment dimension D (§4.3).
func NewClient(cfg Config) *Client {
	httpClient := base.NewHTTPClient(ServiceName, base.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: base.DefaultTimeout,
	})
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &Client{httpClient: httpClient, cfg: cfg}
}

func (c *Client) Dimension() int { return c.cfg.Dim }

type embedRequest struct {
	Model          string `json:"model"`
	Input          any    `json:"input"`
	EncodingFormat string `json:"encoding_format,omitempty"`
	Dimensions     int    `json:"dimensions,omitempty"`
}

type embedData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embedResponse struct {
	Object string      `json:"object"`
	Model  string      `json:"model"`
	Data   []embedData `json:"data"`
}

// Embed produces one vector per input text. Batches larger than
// cfg.BatchMax are split into sequential sub-calls; a single call never
// exceeds the bound.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batchMax := c.cfg.BatchMax
	if batchMax <= 0 {
		batchMax = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchMax {
		end := min(start+batchMax, len(texts))
		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	op := func() ([][]float32, error) {
		req := embedRequest{Model: c.cfg.Model, Input: texts, EncodingFormat: "float"}
		var resp embedResponse
		if err := c.httpClient.Post(ctx, "/embeddings", req, &resp); err != nil {
			if base.IsRetryableError(err) {
				return nil, fmt.Errorf("%w: %v", model.ErrEmbedTransient, err)
			}
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", model.ErrEmbedFatal, err))
		}
		if len(resp.Data) != len(texts) {
			return nil, backoff.Permanent(fmt.Errorf("%w: expected %d embeddings, got %d",
				model.ErrEmbedFatal, len(texts), len(resp.Data)))
		}

		vectors := make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			if c.cfg.Dim > 0 && len(d.Embedding) != c.cfg.Dim {
				return nil, backoff.Permanent(fmt.Errorf("%w: dimension mismatch: want %d, got %d",
					model.ErrEmbedFatal, c.cfg.Dim, len(d.Embedding)))
			}
			vectors[d.Index] = d.Embedding
		}
		return vectors, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 10 * time.Second

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.cfg.MaxRetries),
	)
}
