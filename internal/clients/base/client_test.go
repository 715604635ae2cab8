package base

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoResult struct {
	Message string `json:"message"`
}

func TestHTTPClient_PostSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient("svc", Config{BaseURL: srv.URL, APIKey: "secret"})
	var result echoResult
	err := client.Post(context.Background(), "/anything", map[string]string{"k": "v"}, &result)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Message)
}

func TestHTTPClient_PostNonOKStatusIsClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	client := NewHTTPClient("svc", Config{BaseURL: srv.URL, APIKey: "secret"})
	var result echoResult
	err := client.Post(context.Background(), "/anything", nil, &result)
	require.Error(t, err)
	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusBadRequest, clientErr.StatusCode)
	assert.False(t, IsRetryableError(err), "4xx is not retryable")
}

func TestIsRetryableError_ServerErrorIsRetryable(t *testing.T) {
	err := NewHTTPError("svc", "POST /x", http.StatusServiceUnavailable, "down")
	assert.True(t, IsRetryableError(err))
}

func TestIsRetryableError_NetworkFailureIsRetryable(t *testing.T) {
	err := NewClientError("svc", "POST /x", context.DeadlineExceeded)
	assert.True(t, IsRetryableError(err))
}

func TestIsRetryableError_NonClientErrorIsNotRetryable(t *testing.T) {
	assert.False(t, IsRetryableError(context.Canceled))
}

func TestHTTPClient_GetSendsQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bar", r.URL.Query().Get("foo"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"got it"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient("svc", Config{BaseURL: srv.URL, APIKey: "secret"})
	var result echoResult
	err := client.Get(context.Background(), "/search", map[string]string{"foo": "bar"}, &result)
	require.NoError(t, err)
	assert.Equal(t, "got it", result.Message)
}
