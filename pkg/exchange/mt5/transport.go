package mt5

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Transport performs one call to the terminal middleware and returns the raw
// response text. Timeouts belong to the implementation.
type Transport interface {
	Call(ctx context.Context, method Method, payload any) (string, error)
}

type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *Metrics
}

type TransportOption func(*HTTPTransport)

func WithHTTPClient(hc *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		t.httpClient = hc
	}
}

func WithTimeout(d time.Duration) TransportOption {
	return func(t *HTTPTransport) {
		t.httpClient.Timeout = d
	}
}

func WithTransportMetrics(m *Metrics) TransportOption {
	return func(t *HTTPTransport) {
		t.metrics = m
	}
}

func NewHTTPTransport(logger *zap.Logger, baseURL string, opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Call posts payload as JSON to {base}/api/{method}. A nil payload is sent as {}.
func (t *HTTPTransport) Call(ctx context.Context, method Method, payload any) (string, error) {
	start := time.Now()
	body, err := t.call(ctx, method, payload)
	if t.metrics != nil {
		t.metrics.observeRequest(method, err, time.Since(start))
	}
	if err != nil {
		t.logger.Debug("call failed", zap.String("method", string(method)), zap.Error(err))
		return "", err
	}
	t.logger.Debug("call", zap.String("method", string(method)), zap.Int("bytes", len(body)), zap.Duration("elapsed", time.Since(start)))
	return body, nil
}

func (t *HTTPTransport) call(ctx context.Context, method Method, payload any) (string, error) {
	if !method.Valid() {
		return "", fmt.Errorf("unable to call %q: unknown method", method)
	}

	reqBody := []byte("{}")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("unable to marshal %s payload: %w", method, err)
		}
		reqBody = b
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/"+string(method), bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("unable to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("unable to perform %s request: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("unable to read %s response: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s returned http %d: %s", method, resp.StatusCode, truncate(string(respBody), 256))
	}
	return string(respBody), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
