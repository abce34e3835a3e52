// Copyright 2025 James Ross
package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/videoforge/engine/internal/clients"
	"github.com/videoforge/engine/internal/domain"
	"github.com/videoforge/engine/internal/pipeline"
)

// DigitalHumanStep splices a lip-synced overlay into the composite video
// when the job and account both opt in. Unlike every other step, failure
// here is non-fatal: an error just means the pipeline keeps using the
// pre-human composite, so Execute never returns an error for a service
// failure — only for a missing upstream result, which is a programming
// error rather than an external-service outage.
type DigitalHumanStep struct {
	svc clients.DigitalHumanService
}

func NewDigitalHumanStep(svc clients.DigitalHumanService) *DigitalHumanStep {
	return &DigitalHumanStep{svc: svc}
}

func (s *DigitalHumanStep) Name() string        { return "DigitalHuman" }
func (s *DigitalHumanStep) Description() string { return "splices a lip-synced human overlay into the video" }

func (s *DigitalHumanStep) ShouldExecute(pctx *pipeline.PipelineContext) bool {
	if !pctx.JobExtra.EnableDigitalHuman {
		return false
	}
	return pctx.AccountExtra.DigitalHuman != nil
}

func (s *DigitalHumanStep) Validate(_ *pipeline.PipelineContext) error { return nil }

func (s *DigitalHumanStep) Execute(ctx context.Context, pctx *pipeline.PipelineContext, inputs pipeline.StepInputs) (pipeline.StepResult, error) {
	videoResult, ok := inputs.Result("Video")
	if !ok {
		return nil, fmt.Errorf("digital human step requires a Video result")
	}
	video, ok := videoResult.(*pipeline.VideoResult)
	if !ok {
		return nil, fmt.Errorf("digital human step: unexpected upstream result type %T", videoResult)
	}
	ttsResult, _ := inputs.Result("TTS")
	tts, _ := ttsResult.(*pipeline.TTSResult)

	cfg := pctx.AccountExtra.DigitalHuman
	if cfg == nil || tts == nil {
		return pipeline.NewDigitalHumanResult("", 0, nil), nil
	}

	mode := cfg.Mode
	if mode == "" {
		mode = "fullscreen"
	}

	resp, err := s.svc.Render(ctx, clients.DigitalHumanRequest{AudioPath: tts.AudioPath, Mode: mode})
	if err != nil {
		// non-fatal: spec.md §4.5 requires downstream steps keep using the
		// pre-human composite on any digital-human failure
		return pipeline.NewDigitalHumanResult("", 0, map[string]interface{}{"error": err.Error()}), nil
	}

	var splicedPath string
	switch mode {
	case "corner":
		splicedPath, err = spliceCorner(ctx, pctx.Workspace, video.VideoPath, resp.VideoPath, cfg)
	default:
		splicedPath, err = spliceFullscreen(ctx, pctx.Workspace, video.VideoPath, resp.VideoPath, cfg)
	}
	if err != nil {
		return pipeline.NewDigitalHumanResult("", 0, map[string]interface{}{"error": err.Error()}), nil
	}

	return pipeline.NewDigitalHumanResult(splicedPath, video.Duration, nil), nil
}

func (s *DigitalHumanStep) PostProcess(_ *pipeline.PipelineContext, _ pipeline.StepResult) {}

// spliceFullscreen replaces the opening `IntroDuration` seconds of the
// composite with the rendered human segment: [human_intro][original from
// duration→end]. OutroDuration is not read: no closing human segment is
// spliced over the composite's tail.
func spliceFullscreen(ctx context.Context, workspace, basePath, humanPath string, cfg *domain.DigitalHumanConfig) (string, error) {
	out := filepath.Join(workspace, "videos", "human_fullscreen.mp4")
	filter := fmt.Sprintf(
		"[1:v]trim=0:%.3f[intro];[0:v]trim=%.3f[rest];[intro][rest]concat=n=2:v=1:a=0[outv]",
		cfg.IntroDuration, cfg.IntroDuration,
	)
	if err := runFFmpeg(ctx, 2*time.Minute,
		"-i", basePath, "-i", humanPath,
		"-filter_complex", filter,
		"-map", "[outv]", out,
	); err != nil {
		return "", fmt.Errorf("splice fullscreen: %w", err)
	}
	return out, nil
}

// spliceCorner overlays a chroma-keyed human bubble at the configured
// corner position starting at the composite's first frame. The overlay has
// no time window: IntroDuration and OutroDuration are not read, so it is
// not limited to the intro and outro regions.
func spliceCorner(ctx context.Context, workspace, basePath, humanPath string, cfg *domain.DigitalHumanConfig) (string, error) {
	width := cfg.CornerWidthPx
	if width <= 0 {
		width = 300
	}
	threshold := cfg.ChromaKeyThreshold
	if threshold <= 0 {
		threshold = 1000
	}
	out := filepath.Join(workspace, "videos", "human_corner.mp4")
	filter := fmt.Sprintf(
		"[1:v]scale=%d:-1,chromakey=0x00FF00:%.4f:0.1[human];[0:v][human]overlay=%d:%d[outv]",
		width, threshold/10000.0, cfg.CornerPositionX, cfg.CornerPositionY,
	)
	if err := runFFmpeg(ctx, 2*time.Minute,
		"-i", basePath, "-i", humanPath,
		"-filter_complex", filter,
		"-map", "[outv]", out,
	); err != nil {
		return "", fmt.Errorf("splice corner: %w", err)
	}
	return out, nil
}
