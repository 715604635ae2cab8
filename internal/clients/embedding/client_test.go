package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alleneee/docingest/internal/model"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_EmbedSplitsBatchesAndPreservesOrder(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		texts, _ := req.Input.([]any)
		data := make([]embedData, len(texts))
		for i := range texts {
			data[i] = embedData{Embedding: []float32{float32(i), float32(calls)}, Index: i}
		}
		writeJSON(w, embedResponse{Data: data})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m", BatchMax: 2, Dim: 2, MaxRetries: 1})
	vectors, err := c.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vectors, 3)
	assert.Equal(t, 2, calls, "three texts with batch_max=2 must split into two calls")
	assert.Equal(t, 2, c.Dimension())
}

func TestClient_EmbedEmptyInputIsNoop(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused", Model: "m"})
	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestClient_EmbedDimensionMismatchIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, embedResponse{Data: []embedData{{Embedding: []float32{1, 2, 3}, Index: 0}}})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m", Dim: 2, MaxRetries: 1})
	_, err := c.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrEmbedFatal)
}

func TestClient_EmbedServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m", MaxRetries: 1})
	_, err := c.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrEmbedTransient)
}
