// Copyright 2025 James Ross
package clients

import (
	"context"

	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/breaker"
	"github.com/videoforge/engine/internal/config"
)

type httpDigitalHumanService struct {
	svc *httpService
}

func NewDigitalHumanService(cfg *config.Services, cb *breaker.CircuitBreaker, log *zap.Logger) DigitalHumanService {
	return &httpDigitalHumanService{svc: newHTTPService("digital_human", cfg.DigitalHumanBaseURL, cfg.DigitalHumanTimeout, cb, log)}
}

type digitalHumanWireRequest struct {
	AudioPath string `json:"audio_path"`
	Mode      string `json:"mode"`
}

type digitalHumanWireResponse struct {
	VideoPath string `json:"video_path"`
}

func (s *httpDigitalHumanService) Render(ctx context.Context, req DigitalHumanRequest) (*DigitalHumanResponse, error) {
	var wire digitalHumanWireResponse
	err := s.svc.postJSON(ctx, "/v1/render", digitalHumanWireRequest{AudioPath: req.AudioPath, Mode: req.Mode}, &wire)
	if err != nil {
		return nil, err
	}
	return &DigitalHumanResponse{VideoPath: wire.VideoPath}, nil
}
