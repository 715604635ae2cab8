// Package base provides the shared outbound HTTP client every external
// collaborator client (embedding, rerank, markdown conversion) wraps.
package base

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTimeout = 30 * time.Second
)

// ClientError is the wrapped-error shape every outbound client returns,
// distinguishing transient (5xx/network) from fatal failures.
type ClientError struct {
	Op         string
	Service    string
	StatusCode int
	Err        error
}

func (e *ClientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("client: %s %s failed with status %d: %v", e.Service, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("client: %s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

func NewClientError(service, op string, err error) *ClientError {
	return &ClientError{Op: op, Service: service, Err: err}
}

func NewHTTPError(service, op string, statusCode int, body string) *ClientError {
	return &ClientError{Op: op, Service: service, StatusCode: statusCode, Err: fmt.Errorf("HTTP %d: %s", statusCode, body)}
}

// IsRetryableError reports whether err is a ClientError carrying a 5xx
// status or no status at all (network failure) — the transient
// classification stage-local retry loops use.
func IsRetryableError(err error) bool {
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		return false
	}
	return clientErr.StatusCode >= 500 || clientErr.StatusCode == 0
}

// Config configures one outbound HTTP client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient wraps resty with the core's retry and error-wrapping policy.
type HTTPClient struct {
	client  *resty.Client
	service string
}

// NewHTTPClient builds a client with a bearer-token header, 5xx/network
// retry, and a service name used to label every ClientError.
func NewHTTPClient(service string, cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500
	})

	return &HTTPClient{client: client, service: service}
}

func (h *HTTPClient) Post(ctx context.Context, endpoint string, body, result any) error {
	resp, err := h.client.R().SetContext(ctx).SetBody(body).SetResult(result).Post(endpoint)
	if err != nil {
		return NewClientError(h.service, "POST "+endpoint, err)
	}
	if resp.StatusCode() != 200 {
		return NewHTTPError(h.service, "POST "+endpoint, resp.StatusCode(), resp.String())
	}
	return nil
}

func (h *HTTPClient) Get(ctx context.Context, endpoint string, params map[string]string, result any) error {
	req := h.client.R().SetContext(ctx).SetResult(result)
	for k, v := range params {
		req.SetQueryParam(k, v)
	}
	resp, err := req.Get(endpoint)
	if err != nil {
		return NewClientError(h.service, "GET "+endpoint, err)
	}
	if resp.StatusCode() != 200 {
		return NewHTTPError(h.service, "GET "+endpoint, resp.StatusCode(), resp.String())
	}
	return nil
}
