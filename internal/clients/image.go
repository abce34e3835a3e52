// Copyright 2025 James Ross
package clients

import (
	"context"

	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/breaker"
	"github.com/videoforge/engine/internal/config"
)

type httpImageService struct {
	svc *httpService
}

func NewImageGenerationService(cfg *config.Services, cb *breaker.CircuitBreaker, log *zap.Logger) ImageGenerationService {
	return &httpImageService{svc: newHTTPService("image_generation", cfg.ImageBaseURL, cfg.ImageTimeout, cb, log)}
}

type imageWireRequest struct {
	Prompt             string `json:"prompt"`
	StyleAdapterName   string `json:"style_adapter_name,omitempty"`
	StyleAdapterWeight int    `json:"style_adapter_weight,omitempty"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
}

type imageWireResponse struct {
	ImagePath string `json:"image_path"`
}

func (s *httpImageService) Generate(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	var wire imageWireResponse
	err := s.svc.postJSON(ctx, "/v1/generate", imageWireRequest{
		Prompt:             req.Prompt,
		StyleAdapterName:   req.StyleAdapterName,
		StyleAdapterWeight: req.StyleAdapterWeight,
		Width:              req.Width,
		Height:             req.Height,
	}, &wire)
	if err != nil {
		return nil, err
	}
	return &ImageResponse{ImagePath: wire.ImagePath}, nil
}
