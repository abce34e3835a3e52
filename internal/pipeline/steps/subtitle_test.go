// Copyright 2025 James Ross
package steps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoforge/engine/internal/domain"
	"github.com/videoforge/engine/internal/pipeline"
)

func writeSRT(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSubtitleStepExecuteRejectsFileWithoutTimingMarkers(t *testing.T) {
	dir := t.TempDir()
	srt := writeSRT(t, dir, "bad.srt", "not an srt file")

	step := NewSubtitleStep()
	inputs := pipeline.NewStepInputs(map[string]pipeline.StepResult{
		"TTS": pipeline.NewTTSResult("audio.mp3", srt, 0, nil),
	})

	_, err := step.Execute(context.Background(), &pipeline.PipelineContext{}, inputs)
	assert.Error(t, err)
}

func TestSubtitleStepExecuteCountsEntriesWithoutConversion(t *testing.T) {
	dir := t.TempDir()
	content := "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n2\n00:00:01,000 --> 00:00:02,000\nWorld\n"
	srt := writeSRT(t, dir, "ok.srt", content)

	step := NewSubtitleStep()
	inputs := pipeline.NewStepInputs(map[string]pipeline.StepResult{
		"TTS": pipeline.NewTTSResult("audio.mp3", srt, 0, nil),
	})

	result, err := step.Execute(context.Background(), &pipeline.PipelineContext{}, inputs)
	require.NoError(t, err)
	sub := result.(*pipeline.SubtitleResult)
	assert.Equal(t, 2, sub.SubtitleCount)

	unchanged, err := os.ReadFile(srt)
	require.NoError(t, err)
	assert.Equal(t, content, string(unchanged))
}

func TestSubtitleStepExecuteRewritesSimplifiedToTraditional(t *testing.T) {
	dir := t.TempDir()
	content := "1\n00:00:00,000 --> 00:00:01,000\n这个\n"
	srt := writeSRT(t, dir, "cn.srt", content)

	step := NewSubtitleStep()
	pctx := &pipeline.PipelineContext{
		JobExtra: domain.JobExtra{LanguageConfig: domain.LanguageConfig{TraditionalChinese: true}},
	}
	inputs := pipeline.NewStepInputs(map[string]pipeline.StepResult{
		"TTS": pipeline.NewTTSResult("audio.mp3", srt, 0, nil),
	})

	_, err := step.Execute(context.Background(), pctx, inputs)
	require.NoError(t, err)

	converted, err := os.ReadFile(srt)
	require.NoError(t, err)
	assert.Contains(t, string(converted), "這個")
}

func TestSubtitleStepExecuteNormalizesFullwidthPunctuation(t *testing.T) {
	dir := t.TempDir()
	content := "1\n00:00:00,000 --> 00:00:01,000\nhello，world\n"
	srt := writeSRT(t, dir, "fw.srt", content)

	step := NewSubtitleStep()
	pctx := &pipeline.PipelineContext{
		JobExtra: domain.JobExtra{LanguageConfig: domain.LanguageConfig{NormalizeFullwidth: true}},
	}
	inputs := pipeline.NewStepInputs(map[string]pipeline.StepResult{
		"TTS": pipeline.NewTTSResult("audio.mp3", srt, 0, nil),
	})

	_, err := step.Execute(context.Background(), pctx, inputs)
	require.NoError(t, err)

	converted, err := os.ReadFile(srt)
	require.NoError(t, err)
	assert.Contains(t, string(converted), "hello,world", "fullwidth comma should be folded to narrow form")
}
