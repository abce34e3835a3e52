// Copyright 2025 James Ross
package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/videoforge/engine/internal/clients"
	"github.com/videoforge/engine/internal/pipeline"
)

// TTSStep synthesizes narration audio and a matching SRT from the job's
// content. Failure here is fatal: nothing downstream can run without audio.
type TTSStep struct {
	svc clients.TTSService
}

func NewTTSStep(svc clients.TTSService) *TTSStep {
	return &TTSStep{svc: svc}
}

func (s *TTSStep) Name() string        { return "TTS" }
func (s *TTSStep) Description() string { return "synthesizes narration audio and subtitles from job content" }

func (s *TTSStep) Validate(pctx *pipeline.PipelineContext) error {
	if pctx.Content == "" {
		return fmt.Errorf("job content is empty")
	}
	if pctx.Workspace == "" {
		return fmt.Errorf("workspace is not set")
	}
	return nil
}

func (s *TTSStep) Execute(ctx context.Context, pctx *pipeline.PipelineContext, _ pipeline.StepInputs) (pipeline.StepResult, error) {
	audioDir := filepath.Join(pctx.Workspace, "audio")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}

	req := clients.TTSRequest{
		Text:        pctx.Content,
		SpeechSpeed: 1.0,
	}
	if pctx.Voice != nil {
		req.VoicePath = pctx.Voice.Path
	}
	if pctx.Language != nil {
		req.Language = pctx.Language.LanguageName
	}

	resp, err := s.svc.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	audioPath := filepath.Join(audioDir, "speech.wav")
	srtPath := filepath.Join(audioDir, "subtitle.srt")

	if err := downloadOrCopy(resp.AudioPath, audioPath); err != nil {
		return nil, fmt.Errorf("stage audio: %w", err)
	}
	if err := downloadOrCopy(resp.SRTPath, srtPath); err != nil {
		return nil, fmt.Errorf("stage srt: %w", err)
	}

	dur := msToDuration(resp.DurationMS)
	return pipeline.NewTTSResult(audioPath, srtPath, dur, nil), nil
}

func (s *TTSStep) PostProcess(_ *pipeline.PipelineContext, _ pipeline.StepResult) {}
