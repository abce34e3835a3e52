// Copyright 2025 James Ross
package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/videoforge/engine/internal/pipeline"
)

const (
	maxSceneDurationMS  = 15_000
	maxSceneTextWeight  = 100
)

// SplitStep groups the TTS subtitle's entries into scenes bounded by a
// maximum duration and a CJK-aware maximum text weight, and derives an
// image-generation prompt for each scene.
type SplitStep struct{}

func NewSplitStep() *SplitStep { return &SplitStep{} }

func (s *SplitStep) Name() string        { return "Split" }
func (s *SplitStep) Description() string { return "groups subtitle entries into image-generation scenes" }

func (s *SplitStep) Validate(pctx *pipeline.PipelineContext) error {
	if pctx.Content == "" {
		return fmt.Errorf("job content is empty")
	}
	return nil
}

func (s *SplitStep) Execute(_ context.Context, pctx *pipeline.PipelineContext, inputs pipeline.StepInputs) (pipeline.StepResult, error) {
	ttsResult, ok := inputs.Result("TTS")
	if !ok {
		return nil, fmt.Errorf("split step requires a TTS result")
	}
	tts, ok := ttsResult.(*pipeline.TTSResult)
	if !ok {
		return nil, fmt.Errorf("split step: unexpected upstream result type %T", ttsResult)
	}

	raw, err := os.ReadFile(tts.SRTPath)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	entries, err := parseSRT(string(raw))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("srt %s contains no entries", tts.SRTPath)
	}

	prefix := ""
	coverPrompt := ""
	if pctx.Topic != nil {
		prefix = pctx.Topic.PromptImagePrefix
		coverPrompt = pctx.Topic.PromptCoverImage
	}

	scenes := groupIntoScenes(entries, prefix)
	if coverPrompt != "" && len(scenes) > 0 {
		scenes[0].Prompt = strings.TrimSpace(coverPrompt)
	}

	if err := writeSplitsJSON(pctx.Workspace, scenes); err != nil {
		return nil, err
	}

	return pipeline.NewSplitResult(scenes, nil), nil
}

func (s *SplitStep) PostProcess(_ *pipeline.PipelineContext, _ pipeline.StepResult) {}

// groupIntoScenes packs consecutive subtitle entries into scenes, closing
// the current scene whenever adding the next entry would exceed either
// the max duration or the max CJK-weighted text length.
func groupIntoScenes(entries []srtEntry, promptPrefix string) []pipeline.Scene {
	var scenes []pipeline.Scene
	var cur []srtEntry
	curWeight := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		var texts []string
		for _, e := range cur {
			texts = append(texts, e.Text)
		}
		joined := strings.TrimSpace(strings.Join(texts, " "))
		prompt := strings.TrimSpace(fmt.Sprintf("%s %s", promptPrefix, joined))
		scenes = append(scenes, pipeline.Scene{
			Index:   len(scenes),
			StartMS: cur[0].StartMS,
			EndMS:   cur[len(cur)-1].EndMS,
			Text:    joined,
			Prompt:  prompt,
		})
		cur = nil
		curWeight = 0
	}

	for _, e := range entries {
		entryWeight := cjkWeightedLen(e.Text)
		wouldDuration := int64(0)
		if len(cur) > 0 {
			wouldDuration = e.EndMS - cur[0].StartMS
		}
		if len(cur) > 0 && (wouldDuration > maxSceneDurationMS || curWeight+entryWeight > maxSceneTextWeight) {
			flush()
		}
		cur = append(cur, e)
		curWeight += entryWeight
	}
	flush()
	return scenes
}

type splitsFile struct {
	Splits []pipeline.Scene `json:"splits"`
}

func writeSplitsJSON(workspace string, scenes []pipeline.Scene) error {
	raw, err := json.MarshalIndent(splitsFile{Splits: scenes}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal splits: %w", err)
	}
	path := filepath.Join(workspace, "splits.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write splits.json: %w", err)
	}
	return nil
}
