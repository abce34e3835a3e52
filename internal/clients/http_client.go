// Copyright 2025 James Ross
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/breaker"
	"github.com/videoforge/engine/internal/errs"
	"github.com/videoforge/engine/internal/obs"
)

// httpService is the shared shape behind every REST-backed service
// adapter: a base URL, a timeout, a per-service circuit breaker (so a
// flaky TTS backend can't also trip retries meant for image generation),
// and the JSON request/response plumbing.
type httpService struct {
	name    string
	baseURL string
	client  *http.Client
	cb      *breaker.CircuitBreaker
	log     *zap.Logger
}

func newHTTPService(name, baseURL string, timeout time.Duration, cb *breaker.CircuitBreaker, log *zap.Logger) *httpService {
	return &httpService{
		name:    name,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cb:      cb,
		log:     log,
	}
}

// postJSON POSTs body as JSON and decodes the response into out. Errors are
// classified per spec: timeouts/5xx/connection failures become
// TransientServiceError (retryable), 4xx becomes PermanentServiceError.
func (h *httpService) postJSON(ctx context.Context, path string, body, out interface{}) error {
	if !h.cb.Allow() {
		return errs.NewTransientServiceError(h.name, fmt.Errorf("circuit breaker open"))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errs.NewPermanentServiceError(h.name, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errs.NewPermanentServiceError(h.name, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	obs.ExternalServiceCalls.WithLabelValues(h.name, outcomeLabel(err)).Inc()
	if err != nil {
		h.cb.Record(false)
		return errs.NewTransientServiceError(h.name, fmt.Errorf("request failed after %s: %w", time.Since(start), err))
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 500:
		h.cb.Record(false)
		return errs.NewTransientServiceError(h.name, fmt.Errorf("status %d: %s", resp.StatusCode, data))
	case resp.StatusCode >= 400:
		h.cb.Record(true) // a 4xx is a contract violation, not an outage; don't trip the breaker
		return errs.NewPermanentServiceError(h.name, fmt.Errorf("status %d: %s", resp.StatusCode, data))
	}

	h.cb.Record(true)
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.NewPermanentServiceError(h.name, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func outcomeLabel(err error) string {
	if err != nil {
		return "transport_error"
	}
	return "response"
}
