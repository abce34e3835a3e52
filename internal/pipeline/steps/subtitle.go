// Copyright 2025 James Ross
package steps

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/width"

	"github.com/videoforge/engine/internal/pipeline"
)

// SubtitleStep validates the SRT produced by TTS and, when the job's
// language config asks for it, rewrites simplified Chinese characters to
// their traditional form in place.
type SubtitleStep struct{}

func NewSubtitleStep() *SubtitleStep { return &SubtitleStep{} }

func (s *SubtitleStep) Name() string        { return "Subtitle" }
func (s *SubtitleStep) Description() string { return "validates the SRT and applies script conversion" }

func (s *SubtitleStep) Validate(_ *pipeline.PipelineContext) error { return nil }

func (s *SubtitleStep) Execute(_ context.Context, pctx *pipeline.PipelineContext, inputs pipeline.StepInputs) (pipeline.StepResult, error) {
	ttsResult, ok := inputs.Result("TTS")
	if !ok {
		return nil, fmt.Errorf("subtitle step requires a TTS result")
	}
	tts, ok := ttsResult.(*pipeline.TTSResult)
	if !ok {
		return nil, fmt.Errorf("subtitle step: unexpected upstream result type %T", ttsResult)
	}

	raw, err := os.ReadFile(tts.SRTPath)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	content := string(raw)
	if !strings.Contains(content, "-->") {
		return nil, fmt.Errorf("srt file %s has no timing markers", tts.SRTPath)
	}

	if pctx.JobExtra.LanguageConfig.NormalizeFullwidth {
		content = width.Narrow.String(content)
	}
	if pctx.JobExtra.LanguageConfig.TraditionalChinese {
		content = simplifiedToTraditional(content)
	}
	if content != string(raw) {
		if err := os.WriteFile(tts.SRTPath, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write converted srt: %w", err)
		}
	}

	count := countSRTEntries(content)
	return pipeline.NewSubtitleResult(tts.SRTPath, count, nil), nil
}

func (s *SubtitleStep) PostProcess(_ *pipeline.PipelineContext, _ pipeline.StepResult) {}
