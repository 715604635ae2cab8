package markdownconv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alleneee/docingest/internal/clients/base"
)

func TestClient_ConvertPollsUntilSuccess(t *testing.T) {
	var statusCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v2/parse/pdf":
			_ = json.NewEncoder(w).Encode(uploadResponse{Code: "success", Data: struct {
				UID string `json:"uid"`
			}{UID: "uid-1"}})
		case "/api/v2/parse/status":
			statusCalls++
			if statusCalls < 2 {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code": "success",
					"data": map[string]any{"status": "processing"},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": "success",
				"data": map[string]any{
					"status": "success",
					"result": map[string]any{
						"pages": []map[string]any{{"md": "page one"}, {"md": "page two"}},
					},
				},
			})
		}
	}))
	defer srv.Close()

	c := NewClient(base.Config{BaseURL: srv.URL, APIKey: "k"}, 10*time.Millisecond)
	md, err := c.Convert(context.Background(), []byte("pdf-bytes"), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "page one\n\npage two", md)
	assert.GreaterOrEqual(t, statusCalls, 2)
}

func TestClient_ConvertReturnsErrorOnFailedParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v2/parse/pdf":
			_ = json.NewEncoder(w).Encode(uploadResponse{Data: struct {
				UID string `json:"uid"`
			}{UID: "uid-1"}})
		case "/api/v2/parse/status":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": "success",
				"data": map[string]any{"status": "failed", "detail": "corrupt file"},
			})
		}
	}))
	defer srv.Close()

	c := NewClient(base.Config{BaseURL: srv.URL, APIKey: "k"}, time.Millisecond)
	_, err := c.Convert(context.Background(), []byte("pdf-bytes"), "doc.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt file")
}

func TestClient_ConvertHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v2/parse/pdf":
			_ = json.NewEncoder(w).Encode(uploadResponse{Data: struct {
				UID string `json:"uid"`
			}{UID: "uid-1"}})
		case "/api/v2/parse/status":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": "success",
				"data": map[string]any{"status": "processing"},
			})
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(base.Config{BaseURL: srv.URL, APIKey: "k"}, 5*time.Millisecond)
	_, err := c.Convert(ctx, []byte("pdf-bytes"), "doc.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
