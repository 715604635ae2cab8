// Package markdownconv is the narrow MarkdownConverter collaborator §6
// describes ("Markdown-format conversion libraries" are external,
// narrow-contract collaborators): given raw PDF/DOCX bytes, produce
// Markdown text. The Pipeline Engine's MarkdownNormalize stage invokes
// it when the Document Analyzer has set ProcessingPlan.ConvertToMarkdown.
package markdownconv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alleneee/docingest/internal/clients/base"
)

const serviceName = "markdownconv"

// Converter is the contract this core depends on; everything else about
// the upstream conversion service (doc2x, MinerU, Marker, ...) is an
// implementation detail of one Converter.
type Converter interface {
	Convert(ctx context.Context, data []byte, filename string) (string, error)
}

// Client implements Converter against a doc2x-compatible upload/poll
// API, adapted from the teacher's doc2x client: one synchronous Convert
// call uploads the bytes, polls the parse status until it succeeds or
// fails, and reads the Markdown pages from that status response. There
// is no separate convert or download step. Polling honors ctx
// cancellation instead of a blind time.Sleep loop.
type Client struct {
	httpClient   *base.HTTPClient
	pollInterval time.Duration
}

var _ Converter = (*Client)(nil)

// NewClient builds a markdown-conversion Client.
func NewClient(cfg base.Config, pollInterval time.Duration) *Client {
	if pollInterval == 0 {
		pollInterval = 2 * time.Second
	}
	return &Client{
		httpClient:   base.NewHTTPClient(serviceName, cfg),
		pollInterval: pollInterval,
	}
}

type uploadResponse struct {
	Code string `json:"code"`
	Data struct {
		UID string `json:"uid"`
	} `json:"data"`
}

type statusResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data *struct {
		Status string `json:"status"`
		Detail string `json:"detail"`
		Result *struct {
			Pages []struct {
				Md string `json:"md"`
			} `json:"pages"`
		} `json:"result"`
	} `json:"data"`
}

// Convert uploads data for parsing and polls until the Markdown result is
// ready, concatenating all page fragments in order.
func (c *Client) Convert(ctx context.Context, data []byte, filename string) (string, error) {
	var upload uploadResponse
	if err := c.httpClient.Post(ctx, "/api/v2/parse/pdf", data, &upload); err != nil {
		return "", fmt.Errorf("upload %q: %w", filename, err)
	}

	status, err := c.waitForParsing(ctx, upload.Data.UID)
	if err != nil {
		return "", err
	}
	if status.Data == nil || status.Data.Result == nil {
		return "", base.NewClientError(serviceName, "convert", fmt.Errorf("no result for %q", filename))
	}

	var sb strings.Builder
	for _, page := range status.Data.Result.Pages {
		sb.WriteString(page.Md)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

func (c *Client) waitForParsing(ctx context.Context, uid string) (*statusResponse, error) {
	for {
		var status statusResponse
		if err := c.httpClient.Get(ctx, "/api/v2/parse/status", map[string]string{"uid": uid}, &status); err != nil {
			return nil, fmt.Errorf("poll parse status: %w", err)
		}
		if status.Data == nil {
			return nil, base.NewClientError(serviceName, "wait for parsing", fmt.Errorf("parse failed: %s - %s", status.Code, status.Msg))
		}
		switch status.Data.Status {
		case "success":
			return &status, nil
		case "failed":
			return nil, base.NewClientError(serviceName, "wait for parsing", fmt.Errorf("parse failed: %s", status.Data.Detail))
		default:
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pollInterval):
			}
		}
	}
}
