// Copyright 2025 James Ross
package clients

import (
	"context"

	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/breaker"
	"github.com/videoforge/engine/internal/config"
)

type httpTTSService struct {
	svc *httpService
}

func NewTTSService(cfg *config.Services, cb *breaker.CircuitBreaker, log *zap.Logger) TTSService {
	return &httpTTSService{svc: newHTTPService("tts", cfg.TTSBaseURL, cfg.TTSTimeout, cb, log)}
}

type ttsWireRequest struct {
	Text        string  `json:"text"`
	VoicePath   string  `json:"voice_path"`
	SpeechSpeed float64 `json:"speech_speed"`
	Language    string  `json:"language"`
}

type ttsWireResponse struct {
	AudioPath  string `json:"audio_path"`
	DurationMS int64  `json:"duration_ms"`
	SRTPath    string `json:"srt_path"`
}

func (s *httpTTSService) Synthesize(ctx context.Context, req TTSRequest) (*TTSResponse, error) {
	var wire ttsWireResponse
	err := s.svc.postJSON(ctx, "/v1/synthesize", ttsWireRequest{
		Text:        req.Text,
		VoicePath:   req.VoicePath,
		SpeechSpeed: req.SpeechSpeed,
		Language:    req.Language,
	}, &wire)
	if err != nil {
		return nil, err
	}
	return &TTSResponse{AudioPath: wire.AudioPath, DurationMS: wire.DurationMS, SRTPath: wire.SRTPath}, nil
}
