// Copyright 2025 James Ross
package clients

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/breaker"
	"github.com/videoforge/engine/internal/config"
	"github.com/videoforge/engine/internal/obs"
)

// cachingLLMService wraps an httpService with a Redis-backed response
// cache keyed on sha256(model, prompt), generalizing the idempotency-key
// dedup shape the teacher uses for exactly-once delivery to a pure-read
// cache: identical (model, prompt) pairs never pay for a second completion
// within the TTL.
type cachingLLMService struct {
	svc   *httpService
	rdb   *redis.Client
	ttl   time.Duration
	model string
}

func NewLLMService(cfg *config.Services, rdb *redis.Client, cb *breaker.CircuitBreaker, log *zap.Logger) LLMService {
	return &cachingLLMService{
		svc:   newHTTPService("llm", cfg.LLMBaseURL, cfg.LLMTimeout, cb, log),
		rdb:   rdb,
		ttl:   cfg.LLMCacheTTL,
		model: cfg.LLMModel,
	}
}

type llmWireRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type llmWireResponse struct {
	Text string `json:"text"`
}

func (s *cachingLLMService) Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = s.model
	}
	cacheKey := llmCacheKey(model, req.Prompt)

	if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
		obs.LLMCacheHits.Inc()
		return &LLMResponse{Text: cached, Cached: true}, nil
	}

	var wire llmWireResponse
	if err := s.svc.postJSON(ctx, "/v1/complete", llmWireRequest{Prompt: req.Prompt, Model: model}, &wire); err != nil {
		return nil, err
	}

	if err := s.rdb.Set(ctx, cacheKey, wire.Text, s.ttl).Err(); err != nil {
		// cache write failure is not fatal, the completion still succeeded
		_ = err
	}
	return &LLMResponse{Text: wire.Text, Cached: false}, nil
}

func llmCacheKey(model, prompt string) string {
	h := sha256.Sum256([]byte(model + "\x00" + prompt))
	return fmt.Sprintf("jobengine:llm_cache:%s", hex.EncodeToString(h[:]))
}
