// Copyright 2025 James Ross
package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/videoforge/engine/internal/pipeline"
)

const defaultLogoWidthPx = 100

// PostProcessStep mixes in the narration audio, burns in subtitles, and
// optionally overlays an account logo, producing the final deliverable.
type PostProcessStep struct {
	ffmpegTimeout time.Duration
}

func NewPostProcessStep(ffmpegTimeout time.Duration) *PostProcessStep {
	if ffmpegTimeout <= 0 {
		ffmpegTimeout = 3 * time.Minute
	}
	return &PostProcessStep{ffmpegTimeout: ffmpegTimeout}
}

func (s *PostProcessStep) Name() string        { return "PostProcess" }
func (s *PostProcessStep) Description() string { return "mixes audio, burns subtitles, overlays the logo" }

func (s *PostProcessStep) Validate(_ *pipeline.PipelineContext) error { return nil }

func (s *PostProcessStep) Execute(ctx context.Context, pctx *pipeline.PipelineContext, inputs pipeline.StepInputs) (pipeline.StepResult, error) {
	videoPath, err := latestVideoPath(inputs)
	if err != nil {
		return nil, err
	}

	ttsResult, ok := inputs.Result("TTS")
	if !ok {
		return nil, fmt.Errorf("post process step requires a TTS result")
	}
	tts, ok := ttsResult.(*pipeline.TTSResult)
	if !ok {
		return nil, fmt.Errorf("post process step: unexpected upstream result type %T", ttsResult)
	}

	subResult, ok := inputs.Result("Subtitle")
	if !ok {
		return nil, fmt.Errorf("post process step requires a Subtitle result")
	}
	sub, ok := subResult.(*pipeline.SubtitleResult)
	if !ok {
		return nil, fmt.Errorf("post process step: unexpected upstream result type %T", subResult)
	}

	style := pctx.AccountExtra.SubtitleStyle
	fontName := style.FontName
	if fontName == "" {
		fontName = "Arial"
	}
	fontSize := style.FontSize
	if fontSize == 0 {
		fontSize = 24
	}
	colorBGR := style.ColorBGR
	if colorBGR == "" {
		colorBGR = "FFFFFF"
	}
	logoWidth := style.LogoWidthPx
	if logoWidth <= 0 {
		logoWidth = defaultLogoWidthPx
	}

	out := filepath.Join(pctx.Workspace, "final.mp4")
	var steps []string

	subtitleFilter := fmt.Sprintf(
		"subtitles=%s:force_style='FontName=%s,FontSize=%d,PrimaryColour=&H%s&'",
		sub.SRTPath, fontName, fontSize, colorBGR,
	)
	steps = append(steps, "burn_subtitles")

	logoPath := accountLogoPath(pctx)
	args := []string{"-i", videoPath, "-i", tts.AudioPath}
	var filter string
	var videoLabel string
	if logoPath != "" {
		args = append(args, "-i", logoPath)
		filter = fmt.Sprintf("[0:v]%s[subbed];[2:v]scale=%d:-1[logo];[subbed][logo]overlay=10:10[outv]", subtitleFilter, logoWidth)
		videoLabel = "[outv]"
		steps = append(steps, "overlay_logo")
	} else {
		filter = fmt.Sprintf("[0:v]%s[outv]", subtitleFilter)
		videoLabel = "[outv]"
	}

	args = append(args,
		"-filter_complex", filter,
		"-map", videoLabel,
		"-map", "1:a",
		"-shortest",
		out,
	)
	steps = append(steps, "mix_audio")

	if err := runFFmpeg(ctx, s.ffmpegTimeout, args...); err != nil {
		return nil, fmt.Errorf("post process: %w", err)
	}

	return pipeline.NewPostProcessResult(out, steps, nil), nil
}

func (s *PostProcessStep) PostProcess(_ *pipeline.PipelineContext, _ pipeline.StepResult) {}

// latestVideoPath prefers the DigitalHuman splice when present and
// non-empty, falling back to the plain composite per spec.md §4.5.
func latestVideoPath(inputs pipeline.StepInputs) (string, error) {
	if dhResult, ok := inputs.Result("DigitalHuman"); ok {
		if dh, ok := dhResult.(*pipeline.DigitalHumanResult); ok && dh.VideoPath != "" {
			return dh.VideoPath, nil
		}
	}
	videoResult, ok := inputs.Result("Video")
	if !ok {
		return "", fmt.Errorf("no Video or DigitalHuman result available")
	}
	video, ok := videoResult.(*pipeline.VideoResult)
	if !ok {
		return "", fmt.Errorf("post process step: unexpected upstream result type %T", videoResult)
	}
	return video.VideoPath, nil
}

func accountLogoPath(pctx *pipeline.PipelineContext) string {
	if pctx.Account == nil {
		return ""
	}
	return pctx.Account.Logo
}
